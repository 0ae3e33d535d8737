package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/production"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

type stampRequest struct {
	Action   string  `json:"action" validate:"required"`
	WorkerID *string `json:"worker_id,omitempty" validate:"omitempty,uuid"`
}

// ProductionStamp applies one worker transition to an order's process record.
func ProductionStamp(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, orderID, processID, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stampRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := enums.ParseStampAction(payload.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}
		workerID, err := optionalUUID(payload.WorkerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Stamp(r.Context(), production.StampInput{
			DepartmentID: departmentID,
			OrderID:      orderID,
			ProcessID:    processID,
			WorkerID:     workerID,
			Action:       action,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

type quantitiesRequest struct {
	Input     decimal.Decimal `json:"input"`
	Good      decimal.Decimal `json:"good"`
	Defective decimal.Decimal `json:"defective"`
}

type completeRequest struct {
	WorkerID     *string            `json:"worker_id,omitempty" validate:"omitempty,uuid"`
	Quantities   *quantitiesRequest `json:"quantities,omitempty"`
	ConfirmFinal bool               `json:"confirm_final"`
	Note         *string            `json:"note,omitempty"`
}

// ProductionComplete finishes work on an order's process record.
func ProductionComplete(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, orderID, processID, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload completeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		workerID, err := optionalUUID(payload.WorkerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var quantities *production.Quantities
		if payload.Quantities != nil {
			quantities = &production.Quantities{
				Input:     payload.Quantities.Input,
				Good:      payload.Quantities.Good,
				Defective: payload.Quantities.Defective,
			}
		}

		record, err := svc.CompleteWork(r.Context(), production.CompleteInput{
			DepartmentID: departmentID,
			OrderID:      orderID,
			ProcessID:    processID,
			WorkerID:     workerID,
			Quantities:   quantities,
			ConfirmFinal: payload.ConfirmFinal,
			Note:         payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

type annotationRequest struct {
	Value    string           `json:"value"`
	LotID    *string          `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Note     *string          `json:"note,omitempty"`
}

// ProductionAnnotate upserts one captured annotation value on a record.
func ProductionAnnotate(svc production.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, orderID, processID, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fieldID, err := validators.UUIDParam(r, "fieldId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload annotationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lotID, err := optionalUUID(payload.LotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		value, err := svc.SaveAnnotation(r.Context(), production.SaveAnnotationInput{
			DepartmentID: departmentID,
			OrderID:      orderID,
			ProcessID:    processID,
			FieldID:      fieldID,
			Value:        payload.Value,
			LotID:        lotID,
			Quantity:     payload.Quantity,
			Note:         payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, value)
	}
}

func recordScope(r *http.Request) (departmentID, orderID, processID uuid.UUID, err error) {
	if departmentID, err = validators.UUIDParam(r, "departmentId"); err != nil {
		return
	}
	if orderID, err = validators.UUIDParam(r, "orderId"); err != nil {
		return
	}
	processID, err = validators.UUIDParam(r, "processId")
	return
}

func optionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid uuid")
	}
	return &id, nil
}
