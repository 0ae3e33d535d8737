package controllers

import (
	"net/http"
	"strings"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/trace"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

// TraceOrder serves the full backward genealogy of one sales order.
func TraceOrder(svc trace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderNumber := strings.TrimSpace(r.URL.Query().Get("order_number"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_number is required"))
			return
		}

		result, err := svc.ByOrderNumber(r.Context(), departmentID, orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// TraceLot serves one lot's genealogy in both directions.
func TraceLot(svc trace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lotNumber := strings.TrimSpace(r.URL.Query().Get("lot_number"))
		if lotNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lot_number is required"))
			return
		}

		result, err := svc.ByLotNumber(r.Context(), departmentID, lotNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
