package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

type movementRequest struct {
	ItemID   string          `json:"item_id" validate:"required,uuid"`
	LotID    *string         `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	Type     string          `json:"type" validate:"required"`
	MovedAt  *time.Time      `json:"moved_at,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// PostMovement appends one entry to the stock ledger. Outbound movements go
// through the balance guard so they cannot overdraw their scope.
func PostMovement(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload movementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movementType, err := enums.ParseMovementType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}
		itemID, err := uuid.Parse(payload.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		lotID, err := optionalUUID(payload.LotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movedAt := time.Now()
		if payload.MovedAt != nil {
			movedAt = *payload.MovedAt
		}

		input := ledger.PostInput{
			DepartmentID: departmentID,
			ItemID:       itemID,
			LotID:        lotID,
			Quantity:     payload.Quantity,
			Type:         movementType,
			MovedAt:      movedAt,
			Reason:       payload.Reason,
		}

		post := svc.Post
		if payload.Quantity.Sign() < 0 {
			post = svc.PostOutboundGuarded
		}
		movement, err := post(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
	AsOf    time.Time       `json:"as_of"`
}

// LotBalance serves one lot's ledger balance at a point in time.
func LotBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := validators.UUIDParam(r, "lotId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := validators.QueryTime(r, "as_of", time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.LotBalance(r.Context(), lotID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balanceResponse{Balance: balance, AsOf: asOf})
	}
}

// ItemBalance serves one item's ledger balance across all lots at a point in
// time.
func ItemBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := validators.QueryTime(r, "as_of", time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.ItemBalance(r.Context(), itemID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balanceResponse{Balance: balance, AsOf: asOf})
	}
}
