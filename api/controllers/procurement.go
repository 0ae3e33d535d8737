package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/procurement"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

// syncRequest mirrors the payload the outbox dispatcher sends the other way,
// so both sides of the integration speak one shape.
type syncRequest struct {
	SKU    string  `json:"sku" validate:"required"`
	LotNo  *string `json:"lot_no,omitempty"`
	Qty    string  `json:"qty" validate:"required"`
	Reason string  `json:"reason,omitempty"`
}

// ProcurementStockIn receives an inbound receipt from the external
// procurement system.
func ProcurementStockIn(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return procurementSync(svc, logg, enums.MovementTypeIn)
}

// ProcurementStockOut receives an outbound issue from the external
// procurement system.
func ProcurementStockOut(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return procurementSync(svc, logg, enums.MovementTypeOut)
}

func procurementSync(svc procurement.Service, logg *logger.Logger, movementType enums.MovementType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload syncRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quantity, err := decimal.NewFromString(payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "qty must be a decimal number"))
			return
		}

		result, err := svc.Inbound(r.Context(), procurement.InboundInput{
			SKU:      payload.SKU,
			LotNo:    payload.LotNo,
			Quantity: quantity,
			Type:     movementType,
			Reason:   payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
