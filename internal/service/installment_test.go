package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/cache"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockInvoiceStore struct {
	invoice     *domain.Invoice
	plans       []domain.InstallmentPlan
	installment *domain.InstallmentDescriptor
	payments    map[string]*domain.InstallmentPayment

	createdPlan    *domain.InstallmentPlan
	createdPayment *domain.InstallmentPayment
	paidIDs        []string
	statusUpdates  []string
}

func (m *mockInvoiceStore) CreateInvoice(_ context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	return inv, nil
}

func (m *mockInvoiceStore) ListInvoices(_ context.Context, _ string, _, _ int) ([]domain.Invoice, error) {
	return nil, nil
}

func (m *mockInvoiceStore) GetInvoice(_ context.Context, _, invoiceID string) (*domain.Invoice, error) {
	if m.invoice == nil {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: invoiceID}
	}
	return m.invoice, nil
}

func (m *mockInvoiceStore) GetInvoiceByShareToken(_ context.Context, token string) (*domain.Invoice, error) {
	return nil, &domain.ErrNotFound{Resource: "shared invoice", ID: token}
}

func (m *mockInvoiceStore) SetShareToken(_ context.Context, _, _ string) error { return nil }

func (m *mockInvoiceStore) UpdateInvoiceStatus(_ context.Context, _, status string) error {
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockInvoiceStore) CreateInstallmentPlan(_ context.Context, plan *domain.InstallmentPlan) (*domain.InstallmentPlan, error) {
	plan.ID = "plan-1"
	for i := range plan.Installments {
		plan.Installments[i].ID = "inst-" + string(rune('1'+i))
		plan.Installments[i].PlanID = plan.ID
		plan.Installments[i].Status = "pending"
	}
	m.createdPlan = plan
	return plan, nil
}

func (m *mockInvoiceStore) ListInstallmentPlans(_ context.Context, _, _ string) ([]domain.InstallmentPlan, error) {
	return m.plans, nil
}

func (m *mockInvoiceStore) GetInstallmentPlan(_ context.Context, _, planID string) (*domain.InstallmentPlan, error) {
	for i := range m.plans {
		if m.plans[i].ID == planID {
			return &m.plans[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "installment plan", ID: planID}
}

func (m *mockInvoiceStore) GetInstallment(_ context.Context, _, installmentID string) (*domain.InstallmentDescriptor, error) {
	if m.installment == nil {
		return nil, &domain.ErrNotFound{Resource: "installment", ID: installmentID}
	}
	return m.installment, nil
}

func (m *mockInvoiceStore) MarkInstallmentPaid(_ context.Context, installmentID string, _ time.Time) error {
	m.paidIDs = append(m.paidIDs, installmentID)
	return nil
}

func (m *mockInvoiceStore) CreateInstallmentPayment(_ context.Context, p *domain.InstallmentPayment) (*domain.InstallmentPayment, error) {
	p.ID = "pay-1"
	m.createdPayment = p
	return p, nil
}

func (m *mockInvoiceStore) GetPaymentByIdempotencyKey(_ context.Context, key string) (*domain.InstallmentPayment, error) {
	if p, ok := m.payments[key]; ok {
		return p, nil
	}
	return nil, nil
}

func newTestGoldService(pricePerGram int64) *service.GoldPriceService {
	return service.NewGoldPriceService(
		&mockGoldFetcher{price: &domain.GoldPrice{PricePerGram: pricePerGram, Currency: "IRR"}},
		cache.New[*domain.GoldPrice](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func newInstallmentService(store *mockInvoiceStore, spot int64) *service.InstallmentService {
	return service.NewInstallmentService(store, newTestGoldService(spot), observability.NewMetrics(), zap.NewNop())
}

// --- Plan generation ---

func TestPreviewPlan_CurrencyRounding(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID:          "inv-1",
			TenantID:    "t-1",
			Kind:        domain.InvoiceCurrency,
			TotalAmount: 10000,
			Status:      domain.InvoiceIssued,
		},
	}
	svc := newInstallmentService(store, 0)

	preview, err := svc.PreviewPlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 3,
		IntervalDays:         30,
		InterestRatePercent:  10,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if preview.TotalAmount != 11000 {
		t.Errorf("expected adjusted total 11000, got %d", preview.TotalAmount)
	}
	if len(preview.Installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(preview.Installments))
	}
	if preview.Installments[0].AmountDue != 3667 {
		t.Errorf("expected first installment 3667, got %d", preview.Installments[0].AmountDue)
	}
	if preview.Installments[2].AmountDue != 3666 {
		t.Errorf("expected last installment 3666, got %d", preview.Installments[2].AmountDue)
	}

	var sum int64
	for _, inst := range preview.Installments {
		sum += inst.AmountDue
	}
	if sum != preview.TotalAmount {
		t.Errorf("installments sum to %d, want %d", sum, preview.TotalAmount)
	}
}

func TestPreviewPlan_PastStartDateWarning(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID:          "inv-1",
			TenantID:    "t-1",
			Kind:        domain.InvoiceCurrency,
			TotalAmount: 5000,
			Status:      domain.InvoiceIssued,
		},
	}
	svc := newInstallmentService(store, 0)

	preview, err := svc.PreviewPlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 2,
		IntervalDays:         7,
		StartDate:            time.Now().AddDate(0, 0, -3),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	found := false
	for _, w := range preview.Warnings {
		if w == domain.WarnPastDueDates {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q warning, got %v", domain.WarnPastDueDates, preview.Warnings)
	}
}

func TestPreviewPlan_RejectsBadCount(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{ID: "inv-1", Kind: domain.InvoiceCurrency, TotalAmount: 5000},
	}
	svc := newInstallmentService(store, 0)

	for _, count := range []int{0, 1, 61} {
		_, err := svc.PreviewPlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
			NumberOfInstallments: count,
			IntervalDays:         30,
		})
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("count=%d: expected validation error, got %v", count, err)
		}
	}
}

func TestPreviewPlan_RejectsTotalSmallerThanCount(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{ID: "inv-1", Kind: domain.InvoiceCurrency, TotalAmount: 3},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.PreviewPlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 5,
		IntervalDays:         30,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreviewPlan_RejectsOverroundingSplit(t *testing.T) {
	// 90 across 60 passes the naive total >= count check, but the
	// half-up base of 2 would leave the last installment at -28.
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{ID: "inv-1", Kind: domain.InvoiceCurrency, TotalAmount: 90},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.PreviewPlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 60,
		IntervalDays:         30,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePlan_RejectsOverroundingGoldSplit(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID:                "inv-1",
			Kind:              domain.InvoiceGold,
			TotalGoldWeightMg: 90,
			Status:            domain.InvoiceIssued,
		},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.CreatePlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 60,
		IntervalDays:         30,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.createdPlan != nil {
		t.Error("no plan must be persisted for an unsplittable weight")
	}
}

func TestPreviewPlan_SplitCheckUsesAdjustedTotal(t *testing.T) {
	// The principal 952 splits into 60 parts, but allocation runs on the
	// interest-adjusted total: 952 at 5% is 1000, whose half-up base of
	// 17 would leave the last installment at -3.
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{ID: "inv-1", Kind: domain.InvoiceCurrency, TotalAmount: 952},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.PreviewPlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 60,
		IntervalDays:         30,
		InterestRatePercent:  5,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePlan_GoldRejectsInterest(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID:                "inv-1",
			Kind:              domain.InvoiceGold,
			TotalGoldWeightMg: 4500,
			Status:            domain.InvoiceIssued,
		},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.CreatePlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 3,
		IntervalDays:         30,
		InterestRatePercent:  5,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePlan_ConflictWhenPlanExists(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID: "inv-1", Kind: domain.InvoiceCurrency, TotalAmount: 9000, Status: domain.InvoiceIssued,
		},
		plans: []domain.InstallmentPlan{{ID: "plan-1", InvoiceID: "inv-1"}},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.CreatePlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 3,
		IntervalDays:         30,
	})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreatePlan_RejectsCancelledInvoice(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID: "inv-1", Kind: domain.InvoiceCurrency, TotalAmount: 9000, Status: domain.InvoiceCancelled,
		},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.CreatePlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 3,
		IntervalDays:         30,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePlan_GoldSplitsWeight(t *testing.T) {
	store := &mockInvoiceStore{
		invoice: &domain.Invoice{
			ID:                "inv-1",
			Kind:              domain.InvoiceGold,
			TotalGoldWeightMg: 10001,
			Status:            domain.InvoiceIssued,
		},
	}
	svc := newInstallmentService(store, 0)

	plan, err := svc.CreatePlan(context.Background(), "t-1", "inv-1", &domain.InstallmentPlanRequest{
		NumberOfInstallments: 4,
		IntervalDays:         30,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var sum int64
	for _, inst := range plan.Installments {
		sum += inst.GoldWeightDueMg
	}
	if sum != 10001 {
		t.Errorf("weights sum to %d, want 10001", sum)
	}
	if plan.Installments[0].GoldWeightDueMg != 2500 {
		t.Errorf("expected first weight 2500, got %d", plan.Installments[0].GoldWeightDueMg)
	}
	if plan.Installments[3].GoldWeightDueMg != 2501 {
		t.Errorf("expected last weight 2501, got %d", plan.Installments[3].GoldWeightDueMg)
	}
}

// --- Payments ---

func TestPayInstallment_RequiresIdempotencyKey(t *testing.T) {
	svc := newInstallmentService(&mockInvoiceStore{}, 0)

	_, err := svc.PayInstallment(context.Background(), "t-1", "inst-1", &domain.InstallmentPaymentRequest{})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPayInstallment_IdempotentReplay(t *testing.T) {
	prior := &domain.InstallmentPayment{ID: "pay-original", IdempotencyKey: "key-1", Amount: 3000}
	store := &mockInvoiceStore{
		payments: map[string]*domain.InstallmentPayment{"key-1": prior},
	}
	svc := newInstallmentService(store, 0)

	got, err := svc.PayInstallment(context.Background(), "t-1", "inst-1", &domain.InstallmentPaymentRequest{
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != "pay-original" {
		t.Errorf("expected replayed payment 'pay-original', got '%s'", got.ID)
	}
	if store.createdPayment != nil {
		t.Error("replay must not create a second payment")
	}
}

func TestPayInstallment_AlreadyPaid(t *testing.T) {
	store := &mockInvoiceStore{
		installment: &domain.InstallmentDescriptor{ID: "inst-1", PlanID: "plan-1", Status: "paid"},
	}
	svc := newInstallmentService(store, 0)

	_, err := svc.PayInstallment(context.Background(), "t-1", "inst-1", &domain.InstallmentPaymentRequest{
		IdempotencyKey: "key-1",
	})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestPayInstallment_CurrencyMovesInvoiceToPartiallyPaid(t *testing.T) {
	store := &mockInvoiceStore{
		installment: &domain.InstallmentDescriptor{
			ID: "inst-1", PlanID: "plan-1", AmountDue: 3667, Status: "pending",
		},
		plans: []domain.InstallmentPlan{{
			ID:        "plan-1",
			InvoiceID: "inv-1",
			Kind:      domain.InvoiceCurrency,
			Installments: []domain.InstallmentDescriptor{
				{ID: "inst-1", Status: "pending"},
				{ID: "inst-2", Status: "pending"},
			},
		}},
	}
	svc := newInstallmentService(store, 0)

	payment, err := svc.PayInstallment(context.Background(), "t-1", "inst-1", &domain.InstallmentPaymentRequest{
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if payment.Amount != 3667 {
		t.Errorf("expected amount 3667, got %d", payment.Amount)
	}
	if len(store.paidIDs) != 1 || store.paidIDs[0] != "inst-1" {
		t.Errorf("expected inst-1 marked paid, got %v", store.paidIDs)
	}
	if len(store.statusUpdates) != 1 || store.statusUpdates[0] != domain.InvoicePartially {
		t.Errorf("expected invoice status 'partially_paid', got %v", store.statusUpdates)
	}
}

func TestPayInstallment_LastInstallmentMarksInvoicePaid(t *testing.T) {
	store := &mockInvoiceStore{
		installment: &domain.InstallmentDescriptor{
			ID: "inst-2", PlanID: "plan-1", AmountDue: 3666, Status: "pending",
		},
		plans: []domain.InstallmentPlan{{
			ID:        "plan-1",
			InvoiceID: "inv-1",
			Kind:      domain.InvoiceCurrency,
			Installments: []domain.InstallmentDescriptor{
				{ID: "inst-1", Status: "paid"},
				{ID: "inst-2", Status: "pending"},
			},
		}},
	}
	svc := newInstallmentService(store, 0)

	if _, err := svc.PayInstallment(context.Background(), "t-1", "inst-2", &domain.InstallmentPaymentRequest{
		IdempotencyKey: "key-2",
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(store.statusUpdates) != 1 || store.statusUpdates[0] != domain.InvoicePaid {
		t.Errorf("expected invoice status 'paid', got %v", store.statusUpdates)
	}
}

func TestPayInstallment_GoldValuedAtSpot(t *testing.T) {
	store := &mockInvoiceStore{
		installment: &domain.InstallmentDescriptor{
			ID: "inst-1", PlanID: "plan-1", GoldWeightDueMg: 1500, Status: "pending",
		},
		plans: []domain.InstallmentPlan{{
			ID:        "plan-1",
			InvoiceID: "inv-1",
			Kind:      domain.InvoiceGold,
			Installments: []domain.InstallmentDescriptor{
				{ID: "inst-1", Status: "pending"},
				{ID: "inst-2", Status: "pending"},
			},
		}},
	}
	svc := newInstallmentService(store, 50_000_000)

	payment, err := svc.PayInstallment(context.Background(), "t-1", "inst-1", &domain.InstallmentPaymentRequest{
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 1500 mg at 50,000,000 per gram = 75,000,000 minor units.
	if payment.Amount != 75_000_000 {
		t.Errorf("expected amount 75000000, got %d", payment.Amount)
	}
	if payment.GoldWeightMg != 1500 {
		t.Errorf("expected weight 1500, got %d", payment.GoldWeightMg)
	}
	if payment.SpotPrice != 50_000_000 {
		t.Errorf("expected spot price 50000000, got %d", payment.SpotPrice)
	}
}
