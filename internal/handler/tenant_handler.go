package handler

import (
	"encoding/json"
	"net/http"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Super-admin: tenants — /v1/admin/tenants
// ============================================================

func createTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/tenants")
		defer span.End()

		var req domain.TenantCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tenant, err := svc.CreateTenant(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, tenant)
	}
}

func listTenantsHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/tenants")
		defer span.End()

		page, pageSize := parsePagination(r)
		tenants, err := svc.ListTenants(ctx, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Tenant]{
			Data:     tenants,
			Total:    len(tenants),
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(tenants) == pageSize,
		})
	}
}

func getTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/tenants/{tenantID}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantID")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		tenant, err := svc.GetTenant(ctx, tenantID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, tenant)
	}
}

func updateTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/tenants/{tenantID}")
		defer span.End()

		var req domain.TenantUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tenant, err := svc.UpdateTenant(ctx, chi.URLParam(r, "tenantID"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, tenant)
	}
}

func suspendTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/tenants/{tenantID}/suspend")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantID")
		if err := svc.SuspendTenant(ctx, tenantID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "tenant suspended", ID: tenantID})
	}
}

func activateTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/tenants/{tenantID}/activate")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantID")
		if err := svc.ReactivateTenant(ctx, tenantID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "tenant reactivated", ID: tenantID})
	}
}

func deleteTenantHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/tenants/{tenantID}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantID")
		if err := svc.DeleteTenant(ctx, tenantID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "tenant deleted", ID: tenantID})
	}
}

// ============================================================
// Super-admin: subscriptions
// ============================================================

func getSubscriptionHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/tenants/{tenantID}/subscription")
		defer span.End()

		sub, err := svc.GetSubscription(ctx, chi.URLParam(r, "tenantID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sub)
	}
}

func renewSubscriptionHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/tenants/{tenantID}/subscription")
		defer span.End()

		var req domain.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sub, err := svc.RenewSubscription(ctx, chi.URLParam(r, "tenantID"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sub)
	}
}

// ============================================================
// Super-admin: backups
// ============================================================

func requestBackupHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/tenants/{tenantID}/backups")
		defer span.End()

		run, err := svc.RequestBackup(ctx, chi.URLParam(r, "tenantID"), UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusAccepted, run)
	}
}

func listBackupsHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/tenants/{tenantID}/backups")
		defer span.End()

		page, pageSize := parsePagination(r)
		runs, err := svc.ListBackups(ctx, chi.URLParam(r, "tenantID"), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.BackupRun]{
			Data:     runs,
			Total:    len(runs),
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(runs) == pageSize,
		})
	}
}

func getBackupHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/backups/{backupID}")
		defer span.End()

		run, err := svc.GetBackup(ctx, chi.URLParam(r, "backupID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}

func restoreBackupHandler(svc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/backups/{backupID}/restore")
		defer span.End()

		run, err := svc.RestoreBackup(ctx, chi.URLParam(r, "backupID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusAccepted, run)
	}
}
