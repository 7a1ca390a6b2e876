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
// TenantStore implementation — tenants, subscriptions, backups
// ============================================================

// --- Tenants ---

func (c *Client) CreateTenant(ctx context.Context, t *domain.Tenant) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTenant")
	defer span.End()

	row := map[string]any{
		"id":            uuid.New().String(),
		"name":          t.Name,
		"slug":          t.Slug,
		"contact_email": t.ContactEmail,
		"contact_phone": t.ContactPhone,
		"status":        domain.TenantActive,
		"plan_code":     t.PlanCode,
	}

	body, err := c.doPost(ctx, "tenants", row)
	if err != nil {
		return nil, err
	}

	var rows []domain.Tenant
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode tenant: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tenant insert returned no rows")
	}
	return &rows[0], nil
}

func (c *Client) ListTenants(ctx context.Context, page, pageSize int) ([]domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTenants")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("tenants?status=neq.%s&order=created_at.desc&offset=%d&limit=%d",
		domain.TenantDeleted, offset, pageSize)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Tenant
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode tenants: %w", err)
	}
	return rows, nil
}

func (c *Client) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTenant")
	defer span.End()

	path := fmt.Sprintf("tenants?id=eq.%s&limit=1", tenantID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Tenant
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode tenant: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "tenant", ID: tenantID}
	}
	return &rows[0], nil
}

func (c *Client) GetTenantBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTenantBySlug")
	defer span.End()

	path := fmt.Sprintf("tenants?slug=eq.%s&limit=1", slug)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, nil // caller treats nil as "slug free"
	}

	var rows []domain.Tenant
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode tenant by slug: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) UpdateTenant(ctx context.Context, tenantID string, updates map[string]any) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTenant")
	defer span.End()

	updates["updated_at"] = time.Now().Format(time.RFC3339)
	if err := c.doPatch(ctx, fmt.Sprintf("tenants?id=eq.%s", tenantID), updates); err != nil {
		return nil, err
	}
	return c.GetTenant(ctx, tenantID)
}

func (c *Client) UpdateTenantStatus(ctx context.Context, tenantID, status string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTenantStatus")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("tenants?id=eq.%s", tenantID), map[string]any{
		"status":     status,
		"updated_at": time.Now().Format(time.RFC3339),
	})
}

// --- Subscriptions ---

func (c *Client) GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscription")
	defer span.End()

	path := fmt.Sprintf("subscriptions?tenant_id=eq.%s&order=expires_at.desc&limit=1", tenantID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "subscription", ID: tenantID}
	}

	var rows []domain.Subscription
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "subscription", ID: tenantID}
	}
	return &rows[0], nil
}

func (c *Client) UpsertSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSubscription")
	defer span.End()

	row := map[string]any{
		"id":         uuid.New().String(),
		"tenant_id":  sub.TenantID,
		"plan_code":  sub.PlanCode,
		"starts_at":  sub.StartsAt.Format(time.RFC3339),
		"expires_at": sub.ExpiresAt.Format(time.RFC3339),
		"status":     sub.Status,
	}

	body, err := c.doPost(ctx, "subscriptions", row)
	if err != nil {
		return nil, err
	}

	var rows []domain.Subscription
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("subscription insert returned no rows")
	}
	return &rows[0], nil
}

// --- Backup runs ---

func (c *Client) CreateBackupRun(ctx context.Context, run *domain.BackupRun) (*domain.BackupRun, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateBackupRun")
	defer span.End()

	row := map[string]any{
		"id":           uuid.New().String(),
		"tenant_id":    run.TenantID,
		"status":       run.Status,
		"requested_by": run.RequestedBy,
	}

	body, err := c.doPost(ctx, "backup_runs", row)
	if err != nil {
		return nil, err
	}

	var rows []domain.BackupRun
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode backup run: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("backup run insert returned no rows")
	}
	return &rows[0], nil
}

func (c *Client) ListBackupRuns(ctx context.Context, tenantID string, page, pageSize int) ([]domain.BackupRun, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBackupRuns")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("backup_runs?tenant_id=eq.%s&order=created_at.desc&offset=%d&limit=%d",
		tenantID, offset, pageSize)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.BackupRun
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode backup runs: %w", err)
	}
	return rows, nil
}

func (c *Client) GetBackupRun(ctx context.Context, backupID string) (*domain.BackupRun, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBackupRun")
	defer span.End()

	path := fmt.Sprintf("backup_runs?id=eq.%s&limit=1", backupID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.BackupRun
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode backup run: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "backup", ID: backupID}
	}
	return &rows[0], nil
}

func (c *Client) UpdateBackupRun(ctx context.Context, backupID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateBackupRun")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("backup_runs?id=eq.%s", backupID), updates)
}
