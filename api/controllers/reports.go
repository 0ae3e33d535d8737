package controllers

import (
	"net/http"
	"time"

	"github.com/mfgworks/traceline-backend/api/responses"
	"github.com/mfgworks/traceline-backend/api/validators"
	"github.com/mfgworks/traceline-backend/internal/shortage"
	"github.com/mfgworks/traceline-backend/internal/wip"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

// WIPSummary serves the department-wide stock and work-in-progress report,
// optionally as of a historical date.
func WIPSummary(svc wip.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := validators.QueryTime(r, "as_of", time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.LotSummary(r.Context(), departmentID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// LotWIP serves one lot's per-process WIP map at a point in time.
func LotWIP(svc wip.Service, logg *logger.Logger) http.HandlerFunc {
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

		buckets, err := svc.AtDate(r.Context(), lotID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buckets)
	}
}

// ShortageReport serves the exploded material shortage report.
func ShortageReport(svc shortage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, err := validators.UUIDParam(r, "departmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Report(r.Context(), departmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}
