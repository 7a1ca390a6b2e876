package domain

import "time"

// Subscription plan codes offered to tenants.
const (
	PlanBasic    = "basic"
	PlanBusiness = "business"
	PlanGold     = "gold"
)

// Subscription tracks a tenant's paid access window.
type Subscription struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	PlanCode  string    `json:"plan_code"`
	StartsAt  time.Time `json:"starts_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"` // active, expired, cancelled
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the subscription window has lapsed at t.
func (s *Subscription) Expired(t time.Time) bool {
	return s.ExpiresAt.Before(t)
}

// SubscriptionRequest assigns or renews a tenant plan.
type SubscriptionRequest struct {
	PlanCode     string `json:"plan_code"`
	PeriodMonths int    `json:"period_months"`
}
