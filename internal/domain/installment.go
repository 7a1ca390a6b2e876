package domain

import "time"

// Installment plan request bounds. Requests outside these ranges are
// rejected before the generator runs.
const (
	MinInstallments = 2
	MaxInstallments = 60
	MinIntervalDays = 1
	MaxIntervalDays = 365
	MaxInterestRate = 100.0
)

// InstallmentPlanRequest describes how an invoice total should be
// amortized. StartDate defaults to "now" when zero. InterestRatePercent
// applies to currency invoices only.
type InstallmentPlanRequest struct {
	NumberOfInstallments int       `json:"number_of_installments"`
	IntervalDays         int       `json:"interval_days"`
	InterestRatePercent  float64   `json:"interest_rate_percent,omitempty"`
	StartDate            time.Time `json:"start_date,omitempty"`
}

// InstallmentDescriptor is one scheduled partial payment. Exactly one
// of AmountDue (minor units) or GoldWeightDueMg (milligrams) is set,
// matching the invoice kind.
type InstallmentDescriptor struct {
	ID              string    `json:"id,omitempty"`
	PlanID          string    `json:"plan_id,omitempty"`
	Number          int       `json:"number"`
	DueDate         time.Time `json:"due_date"`
	AmountDue       int64     `json:"amount_due,omitempty"`
	GoldWeightDueMg int64     `json:"gold_weight_due_mg,omitempty"`
	Status          string    `json:"status,omitempty"` // pending, paid
	PaidAt          time.Time `json:"paid_at,omitempty"`
}

// InstallmentPlan is a persisted schedule for one invoice.
type InstallmentPlan struct {
	ID                  string                  `json:"id"`
	InvoiceID           string                  `json:"invoice_id"`
	TenantID            string                  `json:"tenant_id"`
	Kind                string                  `json:"kind"` // mirrors the invoice kind
	InterestRatePercent float64                 `json:"interest_rate_percent,omitempty"`
	IntervalDays        int                     `json:"interval_days"`
	TotalAmount         int64                   `json:"total_amount,omitempty"`         // adjusted total, minor units
	TotalGoldWeightMg   int64                   `json:"total_gold_weight_mg,omitempty"` // milligrams
	Installments        []InstallmentDescriptor `json:"installments"`
	CreatedAt           time.Time               `json:"created_at"`
}

// Plan preview warning codes.
const (
	WarnPastDueDates = "past_due_dates"
)

// InstallmentPlanPreview is the response of the preview endpoint:
// the computed schedule plus any non-fatal warnings. Nothing is
// persisted for a preview.
type InstallmentPlanPreview struct {
	Kind                string                  `json:"kind"`
	TotalAmount         int64                   `json:"total_amount,omitempty"`
	TotalGoldWeightMg   int64                   `json:"total_gold_weight_mg,omitempty"`
	InterestRatePercent float64                 `json:"interest_rate_percent,omitempty"`
	Installments        []InstallmentDescriptor `json:"installments"`
	Warnings            []string                `json:"warnings,omitempty"`
}

// InstallmentPaymentRequest records a payment against one installment.
// For gold installments the currency value is computed from the spot
// price at payment time.
type InstallmentPaymentRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	PaidAmount     int64  `json:"paid_amount,omitempty"` // override, minor units
}

// InstallmentPayment is the recorded settlement of one installment.
type InstallmentPayment struct {
	ID             string    `json:"id"`
	InstallmentID  string    `json:"installment_id"`
	PlanID         string    `json:"plan_id"`
	TenantID       string    `json:"tenant_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Amount         int64     `json:"amount"`                    // minor units actually paid
	GoldWeightMg   int64     `json:"gold_weight_mg,omitempty"`  // weight settled (gold plans)
	SpotPrice      int64     `json:"spot_price,omitempty"`      // per gram at payment time
	PaidAt         time.Time `json:"paid_at"`
}
