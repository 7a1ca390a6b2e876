package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Tenant console: invoices — /v1/invoices
// ============================================================

func createInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices")
		defer span.End()

		var req domain.InvoiceCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		inv, err := svc.CreateInvoice(ctx, TenantIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, inv)
	}
}

func listInvoicesHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices")
		defer span.End()

		page, pageSize := parsePagination(r)
		invoices, err := svc.ListInvoices(ctx, TenantIDFromContext(ctx), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Invoice]{
			Data:     invoices,
			Total:    len(invoices),
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(invoices) == pageSize,
		})
	}
}

// invoiceDetailResponse bundles the invoice with its plans so the
// console can render the whole document in one request.
type invoiceDetailResponse struct {
	Invoice *domain.Invoice          `json:"invoice"`
	Plans   []domain.InstallmentPlan `json:"installment_plans"`
}

func getInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{invoiceID}")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceID")
		span.SetAttributes(attribute.String("invoice.id", invoiceID))

		inv, plans, err := svc.GetInvoiceDetail(ctx, TenantIDFromContext(ctx), invoiceID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, invoiceDetailResponse{Invoice: inv, Plans: plans})
	}
}

func cancelInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices/{invoiceID}/cancel")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceID")
		if err := svc.CancelInvoice(ctx, TenantIDFromContext(ctx), invoiceID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "invoice cancelled", ID: invoiceID})
	}
}

// ============================================================
// Public sharing & QR
// ============================================================

func shareInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices/{invoiceID}/share")
		defer span.End()

		resp, err := svc.ShareInvoice(ctx, TenantIDFromContext(ctx), chi.URLParam(r, "invoiceID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func invoiceQRHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{invoiceID}/qr")
		defer span.End()

		size := 0
		if v := r.URL.Query().Get("size"); v != "" {
			size, _ = strconv.Atoi(v)
		}

		png, err := svc.InvoiceQRCode(ctx, TenantIDFromContext(ctx), chi.URLParam(r, "invoiceID"), size)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}

func publicInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/public/invoices/{token}")
		defer span.End()

		inv, err := svc.GetPublicInvoice(ctx, chi.URLParam(r, "token"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, inv)
	}
}

// ============================================================
// Gold spot — GET /v1/gold/spot
// ============================================================

func goldSpotHandler(svc *service.GoldPriceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/gold/spot")
		defer span.End()

		price, err := svc.GetSpot(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, price)
	}
}
