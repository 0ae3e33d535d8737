package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/bom"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

type bomEdgeRequest struct {
	ChildItemID string          `json:"child_item_id" validate:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	Note        *string         `json:"note,omitempty"`
}

// BOMAddEdge links a component under a parent item, upserting the per-unit
// quantity when the link already exists.
func BOMAddEdge(svc bom.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bomEdgeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		childID, err := uuid.Parse(payload.ChildItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid child item id"))
			return
		}

		edge, err := svc.AddEdge(r.Context(), bom.EdgeInput{
			ParentItemID: parentID,
			ChildItemID:  childID,
			Quantity:     payload.Quantity,
			Note:         payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, edge)
	}
}

// BOMRemoveEdge unlinks a component from its parent.
func BOMRemoveEdge(svc bom.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		childID, err := validators.UUIDParam(r, "childItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveEdge(r.Context(), parentID, childID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// BOMComponents lists an item's direct components.
func BOMComponents(svc bom.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		edges, err := svc.ComponentsOf(r.Context(), parentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, edges)
	}
}

// BOMParents lists the items an item is used in.
func BOMParents(svc bom.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		edges, err := svc.ParentsOf(r.Context(), childID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, edges)
	}
}
