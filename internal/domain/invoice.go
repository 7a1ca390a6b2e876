package domain

import "time"

// Invoice kinds. Currency invoices carry their total in IRR minor
// units; gold invoices carry their total in milligrams of gold and the
// per-gram spot price recorded at creation.
const (
	InvoiceCurrency = "currency"
	InvoiceGold     = "gold"
)

// Invoice statuses.
const (
	InvoiceDraft     = "draft"
	InvoiceIssued    = "issued"
	InvoicePartially = "partially_paid"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// InvoiceLine is one line item on an invoice.
type InvoiceLine struct {
	Description  string `json:"description"`
	Quantity     int64  `json:"quantity"`
	UnitAmount   int64  `json:"unit_amount,omitempty"`    // minor units (currency invoices)
	UnitWeightMg int64  `json:"unit_weight_mg,omitempty"` // milligrams (gold invoices)
}

// Invoice is the billing document the installment generator operates on.
type Invoice struct {
	ID                  string        `json:"id"`
	TenantID            string        `json:"tenant_id"`
	Number              string        `json:"number"`
	Kind                string        `json:"kind"`
	CustomerName        string        `json:"customer_name"`
	CustomerPhone       string        `json:"customer_phone,omitempty"`
	Lines               []InvoiceLine `json:"lines,omitempty"`
	TotalAmount         int64         `json:"total_amount,omitempty"`          // minor units, currency invoices
	TotalGoldWeightMg   int64         `json:"total_gold_weight_mg,omitempty"`  // milligrams, gold invoices
	GoldPriceAtCreation int64         `json:"gold_price_at_creation,omitempty"` // minor units per gram
	Status              string        `json:"status"`
	ShareToken          string        `json:"share_token,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
}

// InvoiceCreateRequest is the body for POST /v1/invoices.
type InvoiceCreateRequest struct {
	Kind              string        `json:"kind"`
	CustomerName      string        `json:"customer_name"`
	CustomerPhone     string        `json:"customer_phone,omitempty"`
	Lines             []InvoiceLine `json:"lines,omitempty"`
	TotalAmount       int64         `json:"total_amount,omitempty"`
	TotalGoldWeightMg int64         `json:"total_gold_weight_mg,omitempty"`
}

// InvoiceShareResponse is returned by POST /v1/invoices/{invoiceID}/share.
type InvoiceShareResponse struct {
	ShareToken string `json:"share_token"`
	PublicURL  string `json:"public_url"`
}

// PublicInvoice is the unauthenticated view served for a share token.
// It hides internal identifiers and tenant details beyond the name.
type PublicInvoice struct {
	Number            string        `json:"number"`
	TenantName        string        `json:"tenant_name"`
	Kind              string        `json:"kind"`
	CustomerName      string        `json:"customer_name"`
	Lines             []InvoiceLine `json:"lines,omitempty"`
	TotalAmount       int64         `json:"total_amount,omitempty"`
	TotalGoldWeightMg int64         `json:"total_gold_weight_mg,omitempty"`
	Status            string        `json:"status"`
	IssuedAt          time.Time     `json:"issued_at"`
}
