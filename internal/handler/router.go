package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router wires up.
type Services struct {
	Tenants      *service.TenantService
	Invoices     *service.InvoiceService
	Installments *service.InstallmentService
	Gold         *service.GoldPriceService
	Logs         *service.ErrorLogService
	Auth         *service.AuthService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Tenants, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Authentication
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
				r.Post("/logout", authLogoutHandler(svcs.Auth, logger))
				r.Put("/password", authChangePasswordHandler(svcs.Auth, logger))
			})
		})

		// Public invoice view (share token is the only credential)
		r.Get("/public/invoices/{token}", publicInvoiceHandler(svcs.Invoices, logger))

		// Live log feed: authenticates inside the handler because the
		// browser WebSocket API cannot send an Authorization header.
		r.Get("/admin/logs/stream", streamLogsHandler(svcs.Logs, svcs.Auth, logger))

		// Tenant console (tenant-bound tokens)
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))
			r.Use(RequireTenant(logger))
			r.Use(SubscriptionGate(svcs.Tenants, logger))

			r.Post("/invoices", createInvoiceHandler(svcs.Invoices, logger))
			r.Get("/invoices", listInvoicesHandler(svcs.Invoices, logger))
			r.Get("/invoices/{invoiceID}", getInvoiceHandler(svcs.Invoices, logger))
			r.Post("/invoices/{invoiceID}/cancel", cancelInvoiceHandler(svcs.Invoices, logger))
			r.Post("/invoices/{invoiceID}/share", shareInvoiceHandler(svcs.Invoices, logger))
			r.Get("/invoices/{invoiceID}/qr", invoiceQRHandler(svcs.Invoices, logger))

			r.Post("/invoices/{invoiceID}/installments/preview", previewPlanHandler(svcs.Installments, logger))
			r.Post("/invoices/{invoiceID}/installments", createPlanHandler(svcs.Installments, logger))
			r.Get("/invoices/{invoiceID}/installments", listPlansHandler(svcs.Installments, logger))
			r.Post("/installments/{installmentID}/pay", payInstallmentHandler(svcs.Installments, logger))

			r.Get("/gold/spot", goldSpotHandler(svcs.Gold, logger))
		})

		// Error log ingest: any authenticated console (tenant or admin)
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))
			r.Post("/logs", ingestLogHandler(svcs.Logs, logger))
		})

		// Super-admin console
		r.Route("/admin", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))
			r.Use(RequireAdmin(logger))

			r.Post("/tenants", createTenantHandler(svcs.Tenants, logger))
			r.Get("/tenants", listTenantsHandler(svcs.Tenants, logger))
			r.Get("/tenants/{tenantID}", getTenantHandler(svcs.Tenants, logger))
			r.Put("/tenants/{tenantID}", updateTenantHandler(svcs.Tenants, logger))
			r.Delete("/tenants/{tenantID}", deleteTenantHandler(svcs.Tenants, logger))
			r.Post("/tenants/{tenantID}/suspend", suspendTenantHandler(svcs.Tenants, logger))
			r.Post("/tenants/{tenantID}/activate", activateTenantHandler(svcs.Tenants, logger))

			r.Get("/tenants/{tenantID}/subscription", getSubscriptionHandler(svcs.Tenants, logger))
			r.Post("/tenants/{tenantID}/subscription", renewSubscriptionHandler(svcs.Tenants, logger))

			r.Post("/tenants/{tenantID}/backups", requestBackupHandler(svcs.Tenants, logger))
			r.Get("/tenants/{tenantID}/backups", listBackupsHandler(svcs.Tenants, logger))
			r.Get("/backups/{backupID}", getBackupHandler(svcs.Tenants, logger))
			r.Post("/backups/{backupID}/restore", restoreBackupHandler(svcs.Tenants, logger))

			r.Get("/logs", listLogsHandler(svcs.Logs, logger))
			r.Get("/metrics/summary", metricsSummaryHandler(metrics, logger))
		})
	})

	return r
}

// SubscriptionGate blocks tenant operations when the tenant is
// suspended or its subscription has lapsed.
func SubscriptionGate(tenants *service.TenantService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := tenants.RequireActiveTenant(r.Context(), TenantIDFromContext(r.Context())); err != nil {
				handleServiceError(w, err, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(tenants *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := domain.HealthStatus{Status: "healthy"}

		start := time.Now()
		_, err := tenants.ListTenants(ctx, 1, 1)
		latency := time.Since(start).Milliseconds()

		storeHealth := domain.ServiceHealth{
			Name:        "supabase",
			Status:      "healthy",
			LatencyMs:   latency,
			LastChecked: time.Now().Format(time.RFC3339),
		}
		if err != nil {
			logger.Warn("healthz: store check failed", zap.Error(err))
			storeHealth.Status = "unhealthy"
			status.Status = "degraded"
		}
		status.Services = append(status.Services, storeHealth)

		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
