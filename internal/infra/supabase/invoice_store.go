package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zarrinbook/zarrinbook/internal/domain"
)

// ============================================================
// InvoiceStore implementation — invoices, plans, payments
// ============================================================

// --- Invoices ---

func (c *Client) CreateInvoice(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateInvoice")
	defer span.End()

	row := map[string]any{
		"id":             uuid.New().String(),
		"tenant_id":      inv.TenantID,
		"number":         inv.Number,
		"kind":           inv.Kind,
		"customer_name":  inv.CustomerName,
		"customer_phone": inv.CustomerPhone,
		"lines":          inv.Lines,
		"status":         domain.InvoiceIssued,
	}
	if inv.Kind == domain.InvoiceGold {
		row["total_gold_weight_mg"] = inv.TotalGoldWeightMg
		row["gold_price_at_creation"] = inv.GoldPriceAtCreation
	} else {
		row["total_amount"] = inv.TotalAmount
	}

	body, err := c.doPost(ctx, "invoices", row)
	if err != nil {
		return nil, err
	}

	var rows []domain.Invoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("invoice insert returned no rows")
	}
	return &rows[0], nil
}

func (c *Client) ListInvoices(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInvoices")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("invoices?tenant_id=eq.%s&order=created_at.desc&offset=%d&limit=%d",
		tenantID, offset, pageSize)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Invoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode invoices: %w", err)
	}
	return rows, nil
}

func (c *Client) GetInvoice(ctx context.Context, tenantID, invoiceID string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInvoice")
	defer span.End()

	path := fmt.Sprintf("invoices?tenant_id=eq.%s&id=eq.%s&limit=1", tenantID, invoiceID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Invoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: invoiceID}
	}
	return &rows[0], nil
}

func (c *Client) GetInvoiceByShareToken(ctx context.Context, token string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInvoiceByShareToken")
	defer span.End()

	path := fmt.Sprintf("invoices?share_token=eq.%s&limit=1", token)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Invoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode shared invoice: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "shared invoice", ID: token}
	}
	return &rows[0], nil
}

func (c *Client) SetShareToken(ctx context.Context, invoiceID, token string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetShareToken")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("invoices?id=eq.%s", invoiceID), map[string]any{
		"share_token": token,
	})
}

func (c *Client) UpdateInvoiceStatus(ctx context.Context, invoiceID, status string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateInvoiceStatus")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("invoices?id=eq.%s", invoiceID), map[string]any{
		"status": status,
	})
}

// --- Installment plans ---

func (c *Client) CreateInstallmentPlan(ctx context.Context, plan *domain.InstallmentPlan) (*domain.InstallmentPlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateInstallmentPlan")
	defer span.End()

	planID := uuid.New().String()
	planRow := map[string]any{
		"id":                    planID,
		"invoice_id":            plan.InvoiceID,
		"tenant_id":             plan.TenantID,
		"kind":                  plan.Kind,
		"interest_rate_percent": plan.InterestRatePercent,
		"interval_days":         plan.IntervalDays,
	}
	if plan.Kind == domain.InvoiceGold {
		planRow["total_gold_weight_mg"] = plan.TotalGoldWeightMg
	} else {
		planRow["total_amount"] = plan.TotalAmount
	}

	body, err := c.doPost(ctx, "installment_plans", planRow)
	if err != nil {
		return nil, err
	}

	var planRows []domain.InstallmentPlan
	if err := json.Unmarshal(body, &planRows); err != nil {
		return nil, fmt.Errorf("decode installment plan: %w", err)
	}
	if len(planRows) == 0 {
		return nil, fmt.Errorf("installment plan insert returned no rows")
	}
	created := planRows[0]

	rows := make([]map[string]any, len(plan.Installments))
	for i, d := range plan.Installments {
		row := map[string]any{
			"id":        uuid.New().String(),
			"plan_id":   planID,
			"tenant_id": plan.TenantID,
			"number":    d.Number,
			"due_date":  d.DueDate.Format("2006-01-02"),
			"status":    "pending",
		}
		if plan.Kind == domain.InvoiceGold {
			row["gold_weight_due_mg"] = d.GoldWeightDueMg
		} else {
			row["amount_due"] = d.AmountDue
		}
		rows[i] = row
	}

	instBody, err := c.doPostBulk(ctx, "installments", rows)
	if err != nil {
		return nil, err
	}

	var descriptors []domain.InstallmentDescriptor
	if err := json.Unmarshal(instBody, &descriptors); err != nil {
		return nil, fmt.Errorf("decode installments: %w", err)
	}
	created.Installments = descriptors
	return &created, nil
}

func (c *Client) ListInstallmentPlans(ctx context.Context, tenantID, invoiceID string) ([]domain.InstallmentPlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInstallmentPlans")
	defer span.End()

	path := fmt.Sprintf("installment_plans?tenant_id=eq.%s&invoice_id=eq.%s&order=created_at.desc",
		tenantID, invoiceID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var plans []domain.InstallmentPlan
	if err := json.Unmarshal(body, &plans); err != nil {
		return nil, fmt.Errorf("decode installment plans: %w", err)
	}

	for i := range plans {
		descriptors, err := c.listInstallments(ctx, plans[i].ID)
		if err != nil {
			return nil, err
		}
		plans[i].Installments = descriptors
	}
	return plans, nil
}

func (c *Client) GetInstallmentPlan(ctx context.Context, tenantID, planID string) (*domain.InstallmentPlan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInstallmentPlan")
	defer span.End()

	path := fmt.Sprintf("installment_plans?tenant_id=eq.%s&id=eq.%s&limit=1", tenantID, planID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.InstallmentPlan
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode installment plan: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "installment plan", ID: planID}
	}

	descriptors, err := c.listInstallments(ctx, rows[0].ID)
	if err != nil {
		return nil, err
	}
	rows[0].Installments = descriptors
	return &rows[0], nil
}

func (c *Client) listInstallments(ctx context.Context, planID string) ([]domain.InstallmentDescriptor, error) {
	path := fmt.Sprintf("installments?plan_id=eq.%s&order=number.asc", planID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.InstallmentDescriptor
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode installments: %w", err)
	}
	return rows, nil
}

func (c *Client) GetInstallment(ctx context.Context, tenantID, installmentID string) (*domain.InstallmentDescriptor, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInstallment")
	defer span.End()

	path := fmt.Sprintf("installments?tenant_id=eq.%s&id=eq.%s&limit=1", tenantID, installmentID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.InstallmentDescriptor
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode installment: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "installment", ID: installmentID}
	}
	return &rows[0], nil
}

func (c *Client) MarkInstallmentPaid(ctx context.Context, installmentID string, paidAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkInstallmentPaid")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("installments?id=eq.%s", installmentID), map[string]any{
		"status":  "paid",
		"paid_at": paidAt.Format(time.RFC3339),
	})
}

// --- Payments ---

func (c *Client) CreateInstallmentPayment(ctx context.Context, p *domain.InstallmentPayment) (*domain.InstallmentPayment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateInstallmentPayment")
	defer span.End()

	row := map[string]any{
		"id":              uuid.New().String(),
		"installment_id":  p.InstallmentID,
		"plan_id":         p.PlanID,
		"tenant_id":       p.TenantID,
		"idempotency_key": p.IdempotencyKey,
		"amount":          p.Amount,
		"paid_at":         p.PaidAt.Format(time.RFC3339),
	}
	if p.GoldWeightMg > 0 {
		row["gold_weight_mg"] = p.GoldWeightMg
		row["spot_price"] = p.SpotPrice
	}

	body, err := c.doPost(ctx, "installment_payments", row)
	if err != nil {
		return nil, err
	}

	var rows []domain.InstallmentPayment
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("payment insert returned no rows")
	}
	return &rows[0], nil
}

func (c *Client) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.InstallmentPayment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPaymentByIdempotencyKey")
	defer span.End()

	path := fmt.Sprintf("installment_payments?idempotency_key=eq.%s&limit=1", key)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []domain.InstallmentPayment
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode payment lookup: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
