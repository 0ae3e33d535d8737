package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/shipping"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

type allocationRequest struct {
	LotID    string          `json:"lot_id" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

type shipRequest struct {
	ShipmentNumber string              `json:"shipment_number" validate:"required"`
	ShippingDate   *time.Time          `json:"shipping_date,omitempty"`
	Allocations    []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
	Note           *string             `json:"note,omitempty"`
}

// Ship splits a sales order across lots and marks it shipped.
func Ship(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		salesOrderID, err := validators.UUIDParam(r, "salesOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		allocations := make([]shipping.Allocation, 0, len(payload.Allocations))
		for _, a := range payload.Allocations {
			lotID, err := uuid.Parse(a.LotID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lot id"))
				return
			}
			allocations = append(allocations, shipping.Allocation{LotID: lotID, Quantity: a.Quantity})
		}
		shippingDate := time.Now()
		if payload.ShippingDate != nil {
			shippingDate = *payload.ShippingDate
		}

		shipments, err := svc.Ship(r.Context(), shipping.ShipInput{
			DepartmentID:   departmentID,
			SalesOrderID:   salesOrderID,
			ShipmentNumber: payload.ShipmentNumber,
			ShippingDate:   shippingDate,
			Allocations:    allocations,
			Note:           payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, shipments)
	}
}

type salesOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateSalesOrderStatus applies a status-only transition to a sales order.
func UpdateSalesOrderStatus(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		salesOrderID, err := validators.UUIDParam(r, "salesOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload salesOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseSalesOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		if err := svc.UpdateStatus(r.Context(), departmentID, salesOrderID, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}
