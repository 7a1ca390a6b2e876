// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// GoldPriceFetcher retrieves the current spot price from the upstream feed.
type GoldPriceFetcher interface {
	FetchSpot(ctx context.Context) (*domain.GoldPrice, error)
}

// TenantStore defines data operations for tenants, subscriptions and
// backup runs (the super-admin surface).
type TenantStore interface {
	// Tenants
	CreateTenant(ctx context.Context, t *domain.Tenant) (*domain.Tenant, error)
	ListTenants(ctx context.Context, page, pageSize int) ([]domain.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID string, updates map[string]any) (*domain.Tenant, error)
	UpdateTenantStatus(ctx context.Context, tenantID, status string) error

	// Subscriptions
	GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)

	// Backup runs
	CreateBackupRun(ctx context.Context, run *domain.BackupRun) (*domain.BackupRun, error)
	ListBackupRuns(ctx context.Context, tenantID string, page, pageSize int) ([]domain.BackupRun, error)
	GetBackupRun(ctx context.Context, backupID string) (*domain.BackupRun, error)
	UpdateBackupRun(ctx context.Context, backupID string, updates map[string]any) error
}

// InvoiceStore defines data operations for invoices, installment plans
// and payments (the tenant surface).
type InvoiceStore interface {
	// Invoices
	CreateInvoice(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID string) (*domain.Invoice, error)
	GetInvoiceByShareToken(ctx context.Context, token string) (*domain.Invoice, error)
	SetShareToken(ctx context.Context, invoiceID, token string) error
	UpdateInvoiceStatus(ctx context.Context, invoiceID, status string) error

	// Installment plans
	CreateInstallmentPlan(ctx context.Context, plan *domain.InstallmentPlan) (*domain.InstallmentPlan, error)
	ListInstallmentPlans(ctx context.Context, tenantID, invoiceID string) ([]domain.InstallmentPlan, error)
	GetInstallmentPlan(ctx context.Context, tenantID, planID string) (*domain.InstallmentPlan, error)
	GetInstallment(ctx context.Context, tenantID, installmentID string) (*domain.InstallmentDescriptor, error)
	MarkInstallmentPaid(ctx context.Context, installmentID string, paidAt time.Time) error

	// Payments
	CreateInstallmentPayment(ctx context.Context, p *domain.InstallmentPayment) (*domain.InstallmentPayment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.InstallmentPayment, error)
}

// AuthStore defines data operations for console users and tokens.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)

	GetCredentials(ctx context.Context, userID string) (*domain.Credential, error)
	UpdateCredentials(ctx context.Context, userID string, updates map[string]any) error

	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// LogStore persists client error events for the admin dashboard.
type LogStore interface {
	InsertErrorEvent(ctx context.Context, ev *domain.ErrorEvent) (*domain.ErrorEvent, error)
	ListErrorEvents(ctx context.Context, q domain.ErrorEventQuery) ([]domain.ErrorEvent, error)
}
