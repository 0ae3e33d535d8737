package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mfgworks/traceline-backend/api/controllers"
	"github.com/mfgworks/traceline-backend/api/middleware"
	"github.com/mfgworks/traceline-backend/internal/bom"
	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/internal/procurement"
	"github.com/mfgworks/traceline-backend/internal/production"
	"github.com/mfgworks/traceline-backend/internal/shipping"
	"github.com/mfgworks/traceline-backend/internal/shortage"
	"github.com/mfgworks/traceline-backend/internal/trace"
	"github.com/mfgworks/traceline-backend/internal/wip"
	"github.com/mfgworks/traceline-backend/pkg/config"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/logger"
	"github.com/mfgworks/traceline-backend/pkg/redis"
)

// Services bundles everything the router wires into controllers.
type Services struct {
	Ledger      ledger.Service
	BOM         bom.Service
	Production  production.Service
	WIP         wip.Service
	Shortage    shortage.Service
	Trace       trace.Service
	Shipping    shipping.Service
	Procurement procurement.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	// Machine-to-machine surface the external procurement system calls.
	r.Route("/api/procurement", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.API.SyncAPIKey, logg))
		r.Post("/stock-in", controllers.ProcurementStockIn(svcs.Procurement, logg))
		r.Post("/stock-out", controllers.ProcurementStockOut(svcs.Procurement, logg))
	})

	r.Route("/api/v1/departments/{departmentId}", func(r chi.Router) {
		r.Route("/movements", func(r chi.Router) {
			r.Post("/", controllers.PostMovement(svcs.Ledger, logg))
		})

		r.Route("/orders/{orderId}/processes/{processId}", func(r chi.Router) {
			r.Post("/stamp", controllers.ProductionStamp(svcs.Production, logg))
			r.Post("/complete", controllers.ProductionComplete(svcs.Production, logg))
			r.Put("/annotations/{fieldId}", controllers.ProductionAnnotate(svcs.Production, logg))
		})

		r.Route("/sales-orders/{salesOrderId}", func(r chi.Router) {
			r.Post("/ship", controllers.Ship(svcs.Shipping, logg))
			r.Patch("/status", controllers.UpdateSalesOrderStatus(svcs.Shipping, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/wip", controllers.WIPSummary(svcs.WIP, logg))
			r.Get("/shortage", controllers.ShortageReport(svcs.Shortage, logg))
		})

		r.Route("/trace", func(r chi.Router) {
			r.Get("/order", controllers.TraceOrder(svcs.Trace, logg))
			r.Get("/lot", controllers.TraceLot(svcs.Trace, logg))
		})
	})

	r.Route("/api/v1/lots/{lotId}", func(r chi.Router) {
		r.Get("/balance", controllers.LotBalance(svcs.Ledger, logg))
		r.Get("/wip", controllers.LotWIP(svcs.WIP, logg))
	})

	r.Route("/api/v1/items/{itemId}", func(r chi.Router) {
		r.Get("/balance", controllers.ItemBalance(svcs.Ledger, logg))
		r.Route("/bom", func(r chi.Router) {
			r.Get("/components", controllers.BOMComponents(svcs.BOM, logg))
			r.Get("/parents", controllers.BOMParents(svcs.BOM, logg))
			r.Post("/components", controllers.BOMAddEdge(svcs.BOM, logg))
			r.Delete("/components/{childItemId}", controllers.BOMRemoveEdge(svcs.BOM, logg))
		})
	})

	return r
}
