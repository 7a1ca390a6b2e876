package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/installment"
	"github.com/zarrinbook/zarrinbook/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var planTracer = otel.Tracer("service/installment")

// InstallmentService validates plan requests, runs the schedule
// generator and records payments against installments.
type InstallmentService struct {
	store   port.InvoiceStore
	gold    *GoldPriceService
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewInstallmentService creates a new installment service.
func NewInstallmentService(store port.InvoiceStore, gold *GoldPriceService, metrics *observability.Metrics, logger *zap.Logger) *InstallmentService {
	return &InstallmentService{
		store:   store,
		gold:    gold,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ============================================================
// Plan generation
// ============================================================

// PreviewPlan computes a schedule without persisting anything. A start
// date in the past is allowed but flagged, so the console can warn the
// operator before they commit.
func (s *InstallmentService) PreviewPlan(ctx context.Context, tenantID, invoiceID string, req *domain.InstallmentPlanRequest) (*domain.InstallmentPlanPreview, error) {
	ctx, span := planTracer.Start(ctx, "InstallmentService.PreviewPlan")
	defer span.End()

	inv, err := s.store.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.validatePlanRequest(inv, req); err != nil {
		return nil, err
	}

	start := req.StartDate
	if start.IsZero() {
		start = s.now()
	}

	preview := &domain.InstallmentPlanPreview{
		Kind:                inv.Kind,
		InterestRatePercent: req.InterestRatePercent,
	}

	switch inv.Kind {
	case domain.InvoiceCurrency:
		adjusted, descriptors := installment.BuildCurrency(
			inv.TotalAmount, req.InterestRatePercent,
			start, req.IntervalDays, req.NumberOfInstallments,
		)
		preview.TotalAmount = adjusted
		preview.Installments = descriptors
	case domain.InvoiceGold:
		preview.TotalGoldWeightMg = inv.TotalGoldWeightMg
		preview.Installments = installment.BuildGold(
			inv.TotalGoldWeightMg,
			start, req.IntervalDays, req.NumberOfInstallments,
		)
	}

	today := s.now()
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if preview.Installments[0].DueDate.Before(midnight) {
		preview.Warnings = append(preview.Warnings, domain.WarnPastDueDates)
	}

	return preview, nil
}

// CreatePlan generates and persists a schedule for an invoice. An
// invoice carries at most one active plan.
func (s *InstallmentService) CreatePlan(ctx context.Context, tenantID, invoiceID string, req *domain.InstallmentPlanRequest) (*domain.InstallmentPlan, error) {
	ctx, span := planTracer.Start(ctx, "InstallmentService.CreatePlan")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("invoice.id", invoiceID),
		attribute.Int("plan.count", req.NumberOfInstallments),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("plan_create", time.Since(start)) }()

	inv, err := s.store.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceCancelled || inv.Status == domain.InvoicePaid {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot create a plan for a %s invoice", inv.Status)}
	}
	if err := s.validatePlanRequest(inv, req); err != nil {
		return nil, err
	}

	existing, err := s.store.ListInstallmentPlans(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &domain.ErrConflict{Message: "invoice already has an installment plan"}
	}

	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}

	plan := &domain.InstallmentPlan{
		InvoiceID:           invoiceID,
		TenantID:            tenantID,
		Kind:                inv.Kind,
		InterestRatePercent: req.InterestRatePercent,
		IntervalDays:        req.IntervalDays,
	}

	switch inv.Kind {
	case domain.InvoiceCurrency:
		adjusted, descriptors := installment.BuildCurrency(
			inv.TotalAmount, req.InterestRatePercent,
			startDate, req.IntervalDays, req.NumberOfInstallments,
		)
		plan.TotalAmount = adjusted
		plan.Installments = descriptors
	case domain.InvoiceGold:
		plan.TotalGoldWeightMg = inv.TotalGoldWeightMg
		plan.Installments = installment.BuildGold(
			inv.TotalGoldWeightMg,
			startDate, req.IntervalDays, req.NumberOfInstallments,
		)
	}

	created, err := s.store.CreateInstallmentPlan(ctx, plan)
	if err != nil {
		s.logger.Error("failed to persist installment plan",
			zap.String("tenant_id", tenantID),
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrPlanGenerated(inv.Kind)
	s.logger.Info("installment plan created",
		zap.String("tenant_id", tenantID),
		zap.String("invoice_id", invoiceID),
		zap.String("plan_id", created.ID),
		zap.String("kind", inv.Kind),
		zap.Int("installments", req.NumberOfInstallments),
		zap.Int("interval_days", req.IntervalDays),
	)

	return created, nil
}

func (s *InstallmentService) ListPlans(ctx context.Context, tenantID, invoiceID string) ([]domain.InstallmentPlan, error) {
	ctx, span := planTracer.Start(ctx, "InstallmentService.ListPlans")
	defer span.End()

	return s.store.ListInstallmentPlans(ctx, tenantID, invoiceID)
}

func (s *InstallmentService) GetPlan(ctx context.Context, tenantID, planID string) (*domain.InstallmentPlan, error) {
	ctx, span := planTracer.Start(ctx, "InstallmentService.GetPlan")
	defer span.End()

	return s.store.GetInstallmentPlan(ctx, tenantID, planID)
}

// validatePlanRequest enforces the request bounds. The generator itself
// assumes valid inputs, so everything must be rejected here.
func (s *InstallmentService) validatePlanRequest(inv *domain.Invoice, req *domain.InstallmentPlanRequest) error {
	count := req.NumberOfInstallments
	if count < domain.MinInstallments || count > domain.MaxInstallments {
		return &domain.ErrValidation{
			Field:   "number_of_installments",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinInstallments, domain.MaxInstallments),
		}
	}
	if req.IntervalDays < domain.MinIntervalDays || req.IntervalDays > domain.MaxIntervalDays {
		return &domain.ErrValidation{
			Field:   "interval_days",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinIntervalDays, domain.MaxIntervalDays),
		}
	}
	if req.InterestRatePercent < 0 || req.InterestRatePercent > domain.MaxInterestRate {
		return &domain.ErrValidation{
			Field:   "interest_rate_percent",
			Message: fmt.Sprintf("must be between 0 and %.0f", domain.MaxInterestRate),
		}
	}

	switch inv.Kind {
	case domain.InvoiceCurrency:
		// The allocator needs count non-negative parts: totals below the
		// count round the base to zero, and slightly larger totals can
		// round the base up far enough to push the last part negative.
		// Checked against the interest-adjusted total, the amount that
		// actually gets allocated.
		if !installment.CanSplit(installment.ApplyInterest(inv.TotalAmount, req.InterestRatePercent), count) {
			return &domain.ErrValidation{
				Field:   "number_of_installments",
				Message: "invoice total is too small to split this many ways",
			}
		}
	case domain.InvoiceGold:
		if req.InterestRatePercent != 0 {
			return &domain.ErrValidation{
				Field:   "interest_rate_percent",
				Message: "interest does not apply to gold invoices",
			}
		}
		if !installment.CanSplit(inv.TotalGoldWeightMg, count) {
			return &domain.ErrValidation{
				Field:   "number_of_installments",
				Message: "invoice weight is too small to split this many ways",
			}
		}
	}

	return nil
}

// ============================================================
// Payments
// ============================================================

// PayInstallment settles one installment. The idempotency key makes
// retries safe: a repeated key returns the original payment untouched.
// Gold installments are valued at the spot price on the payment date.
func (s *InstallmentService) PayInstallment(ctx context.Context, tenantID, installmentID string, req *domain.InstallmentPaymentRequest) (*domain.InstallmentPayment, error) {
	ctx, span := planTracer.Start(ctx, "InstallmentService.PayInstallment")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("installment_pay", time.Since(start)) }()

	if req.IdempotencyKey == "" {
		return nil, &domain.ErrValidation{Field: "idempotency_key", Message: "required"}
	}

	if prior, err := s.store.GetPaymentByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if prior != nil {
		s.logger.Info("installment payment replayed",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("payment_id", prior.ID),
		)
		return prior, nil
	}

	inst, err := s.store.GetInstallment(ctx, tenantID, installmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status == "paid" {
		return nil, &domain.ErrConflict{Message: "installment is already paid"}
	}

	plan, err := s.store.GetInstallmentPlan(ctx, tenantID, inst.PlanID)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	payment := &domain.InstallmentPayment{
		InstallmentID:  installmentID,
		PlanID:         inst.PlanID,
		TenantID:       tenantID,
		IdempotencyKey: req.IdempotencyKey,
		PaidAt:         paidAt,
	}

	switch plan.Kind {
	case domain.InvoiceCurrency:
		payment.Amount = inst.AmountDue
		if req.PaidAmount > 0 {
			payment.Amount = req.PaidAmount
		}
	case domain.InvoiceGold:
		spot, err := s.gold.GetSpot(ctx)
		if err != nil {
			return nil, err
		}
		payment.GoldWeightMg = inst.GoldWeightDueMg
		payment.SpotPrice = spot.PricePerGram
		payment.Amount = goldValue(inst.GoldWeightDueMg, spot.PricePerGram)
	}

	created, err := s.store.CreateInstallmentPayment(ctx, payment)
	if err != nil {
		s.logger.Error("failed to record installment payment",
			zap.String("installment_id", installmentID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.store.MarkInstallmentPaid(ctx, installmentID, paidAt); err != nil {
		s.logger.Error("failed to mark installment paid",
			zap.String("installment_id", installmentID),
			zap.Error(err),
		)
	}

	s.syncInvoiceStatus(ctx, tenantID, plan, installmentID)

	s.logger.Info("installment paid",
		zap.String("tenant_id", tenantID),
		zap.String("installment_id", installmentID),
		zap.String("payment_id", created.ID),
		zap.Int64("amount", created.Amount),
		zap.Int64("gold_weight_mg", created.GoldWeightMg),
	)

	return created, nil
}

// syncInvoiceStatus moves the parent invoice to partially_paid, or to
// paid once every installment in the plan has settled.
func (s *InstallmentService) syncInvoiceStatus(ctx context.Context, tenantID string, plan *domain.InstallmentPlan, justPaidID string) {
	allPaid := true
	for _, inst := range plan.Installments {
		if inst.ID == justPaidID {
			continue
		}
		if inst.Status != "paid" {
			allPaid = false
			break
		}
	}

	status := domain.InvoicePartially
	if allPaid {
		status = domain.InvoicePaid
	}
	if err := s.store.UpdateInvoiceStatus(ctx, plan.InvoiceID, status); err != nil {
		s.logger.Error("failed to sync invoice status",
			zap.String("invoice_id", plan.InvoiceID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

// goldValue converts milligrams to minor units at a per-gram price,
// rounding half-up.
func goldValue(weightMg, pricePerGram int64) int64 {
	return (2*weightMg*pricePerGram + 1000) / 2000
}
