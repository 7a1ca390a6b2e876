package domain

import "time"

// Tenant status values.
const (
	TenantActive    = "active"
	TenantSuspended = "suspended"
	TenantDeleted   = "deleted"
)

// Tenant is one business customer of the platform. Every invoice, user
// and installment plan belongs to exactly one tenant.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Status       string    `json:"status"`
	PlanCode     string    `json:"plan_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// TenantCreateRequest is the body for POST /v1/admin/tenants.
type TenantCreateRequest struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone,omitempty"`
	PlanCode     string `json:"plan_code,omitempty"`
	PeriodMonths int    `json:"period_months,omitempty"`
}

// TenantUpdateRequest is the body for PUT /v1/admin/tenants/{tenantID}.
type TenantUpdateRequest struct {
	Name         string `json:"name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}
