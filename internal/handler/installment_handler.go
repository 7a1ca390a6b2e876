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
// Installment plans — /v1/invoices/{invoiceID}/installments
// ============================================================

func previewPlanHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices/{invoiceID}/installments/preview")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceID")
		span.SetAttributes(attribute.String("invoice.id", invoiceID))

		var req domain.InstallmentPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		preview, err := svc.PreviewPlan(ctx, TenantIDFromContext(ctx), invoiceID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, preview)
	}
}

func createPlanHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices/{invoiceID}/installments")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceID")
		span.SetAttributes(attribute.String("invoice.id", invoiceID))

		var req domain.InstallmentPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		plan, err := svc.CreatePlan(ctx, TenantIDFromContext(ctx), invoiceID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, plan)
	}
}

func listPlansHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{invoiceID}/installments")
		defer span.End()

		plans, err := svc.ListPlans(ctx, TenantIDFromContext(ctx), chi.URLParam(r, "invoiceID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, plans)
	}
}

func payInstallmentHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/installments/{installmentID}/pay")
		defer span.End()

		installmentID := chi.URLParam(r, "installmentID")
		span.SetAttributes(attribute.String("installment.id", installmentID))

		var req domain.InstallmentPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		payment, err := svc.PayInstallment(ctx, TenantIDFromContext(ctx), installmentID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, payment)
	}
}
