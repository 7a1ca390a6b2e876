// Package service provides the business logic layer (use cases).
// TenantService covers the super-admin surface: tenant lifecycle,
// subscription windows and backup runs.
package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/infra/resilience"
	"github.com/zarrinbook/zarrinbook/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tenantTracer = otel.Tracer("service/tenant")

// slugRegex matches lowercase letters, digits and single hyphens,
// 3-40 chars. The slug becomes part of the tenant's console URL.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const defaultSubscriptionMonths = 1

// TenantService orchestrates the super-admin operations.
type TenantService struct {
	store   port.TenantStore
	backups *resilience.Bulkhead
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTenantService creates a new tenant service. The bulkhead caps how
// many backup runs may execute at once.
func NewTenantService(store port.TenantStore, backups *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *TenantService {
	return &TenantService{store: store, backups: backups, metrics: metrics, logger: logger}
}

// ============================================================
// Tenants
// ============================================================

func (s *TenantService) CreateTenant(ctx context.Context, req *domain.TenantCreateRequest) (*domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.CreateTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.slug", req.Slug))

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if len(req.Slug) < 3 || len(req.Slug) > 40 || !slugRegex.MatchString(req.Slug) {
		return nil, &domain.ErrValidation{Field: "slug", Message: "3-40 lowercase letters, digits and hyphens"}
	}
	if req.ContactEmail == "" {
		return nil, &domain.ErrValidation{Field: "contact_email", Message: "required"}
	}
	if req.PlanCode == "" {
		req.PlanCode = domain.PlanBasic
	}
	if !validPlanCode(req.PlanCode) {
		return nil, &domain.ErrValidation{Field: "plan_code", Message: fmt.Sprintf("unknown plan '%s'", req.PlanCode)}
	}

	// Slug must be unique among live tenants
	existing, err := s.store.GetTenantBySlug(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if existing != nil && existing.Status != domain.TenantDeleted {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("slug '%s' is already taken", req.Slug)}
	}

	tenant, err := s.store.CreateTenant(ctx, &domain.Tenant{
		Name:         req.Name,
		Slug:         req.Slug,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		PlanCode:     req.PlanCode,
	})
	if err != nil {
		s.logger.Error("failed to create tenant", zap.String("slug", req.Slug), zap.Error(err))
		return nil, err
	}

	// New tenants start with an active subscription window
	months := req.PeriodMonths
	if months <= 0 {
		months = defaultSubscriptionMonths
	}
	now := time.Now()
	if _, subErr := s.store.UpsertSubscription(ctx, &domain.Subscription{
		TenantID:  tenant.ID,
		PlanCode:  req.PlanCode,
		StartsAt:  now,
		ExpiresAt: now.AddDate(0, months, 0),
		Status:    "active",
	}); subErr != nil {
		s.logger.Error("failed to create initial subscription",
			zap.String("tenant_id", tenant.ID),
			zap.Error(subErr),
		)
	}

	s.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID),
		zap.String("slug", tenant.Slug),
		zap.String("plan", req.PlanCode),
	)

	return tenant, nil
}

func (s *TenantService) ListTenants(ctx context.Context, page, pageSize int) ([]domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.ListTenants")
	defer span.End()

	return s.store.ListTenants(ctx, page, pageSize)
}

func (s *TenantService) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.GetTenant")
	defer span.End()

	return s.store.GetTenant(ctx, tenantID)
}

func (s *TenantService) UpdateTenant(ctx context.Context, tenantID string, req *domain.TenantUpdateRequest) (*domain.Tenant, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.UpdateTenant")
	defer span.End()

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.ContactEmail != "" {
		updates["contact_email"] = req.ContactEmail
	}
	if req.ContactPhone != "" {
		updates["contact_phone"] = req.ContactPhone
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	return s.store.UpdateTenant(ctx, tenantID, updates)
}

func (s *TenantService) SuspendTenant(ctx context.Context, tenantID string) error {
	ctx, span := tenantTracer.Start(ctx, "TenantService.SuspendTenant")
	defer span.End()

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.Status != domain.TenantActive {
		return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot suspend tenant with status '%s'", tenant.Status)}
	}

	if err := s.store.UpdateTenantStatus(ctx, tenantID, domain.TenantSuspended); err != nil {
		return err
	}

	s.logger.Info("tenant suspended", zap.String("tenant_id", tenantID))
	return nil
}

func (s *TenantService) ReactivateTenant(ctx context.Context, tenantID string) error {
	ctx, span := tenantTracer.Start(ctx, "TenantService.ReactivateTenant")
	defer span.End()

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.Status != domain.TenantSuspended {
		return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot reactivate tenant with status '%s'", tenant.Status)}
	}

	if err := s.store.UpdateTenantStatus(ctx, tenantID, domain.TenantActive); err != nil {
		return err
	}

	s.logger.Info("tenant reactivated", zap.String("tenant_id", tenantID))
	return nil
}

// DeleteTenant soft-deletes: the row stays for audit, the slug is freed
// for reuse and the tenant disappears from listings.
func (s *TenantService) DeleteTenant(ctx context.Context, tenantID string) error {
	ctx, span := tenantTracer.Start(ctx, "TenantService.DeleteTenant")
	defer span.End()

	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return err
	}

	if err := s.store.UpdateTenantStatus(ctx, tenantID, domain.TenantDeleted); err != nil {
		return err
	}

	s.logger.Info("tenant deleted", zap.String("tenant_id", tenantID))
	return nil
}

// RequireActiveTenant gates tenant-scoped operations: the tenant must
// exist, be active and hold an unexpired subscription.
func (s *TenantService) RequireActiveTenant(ctx context.Context, tenantID string) error {
	ctx, span := tenantTracer.Start(ctx, "TenantService.RequireActiveTenant")
	defer span.End()

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.Status == domain.TenantSuspended || tenant.Status == domain.TenantDeleted {
		return &domain.ErrTenantSuspended{TenantID: tenantID}
	}

	sub, err := s.store.GetSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	if sub.Expired(time.Now()) {
		return &domain.ErrSubscriptionExpired{
			TenantID:  tenantID,
			ExpiredAt: sub.ExpiresAt.Format(time.RFC3339),
		}
	}
	return nil
}

// ============================================================
// Subscriptions
// ============================================================

func (s *TenantService) GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.GetSubscription")
	defer span.End()

	return s.store.GetSubscription(ctx, tenantID)
}

// RenewSubscription extends a tenant's access window. Renewal extends
// from the current expiry when it is still in the future, otherwise
// from now, so renewing early never loses paid days.
func (s *TenantService) RenewSubscription(ctx context.Context, tenantID string, req *domain.SubscriptionRequest) (*domain.Subscription, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.RenewSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("plan", req.PlanCode))

	if !validPlanCode(req.PlanCode) {
		return nil, &domain.ErrValidation{Field: "plan_code", Message: fmt.Sprintf("unknown plan '%s'", req.PlanCode)}
	}
	if req.PeriodMonths < 1 || req.PeriodMonths > 24 {
		return nil, &domain.ErrValidation{Field: "period_months", Message: "must be between 1 and 24"}
	}

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status == domain.TenantDeleted {
		return nil, &domain.ErrNotFound{Resource: "tenant", ID: tenantID}
	}

	now := time.Now()
	startsAt := now
	if current, err := s.store.GetSubscription(ctx, tenantID); err == nil && current.ExpiresAt.After(now) {
		startsAt = current.ExpiresAt
	}

	sub, err := s.store.UpsertSubscription(ctx, &domain.Subscription{
		TenantID:  tenantID,
		PlanCode:  req.PlanCode,
		StartsAt:  startsAt,
		ExpiresAt: startsAt.AddDate(0, req.PeriodMonths, 0),
		Status:    "active",
	})
	if err != nil {
		s.logger.Error("failed to renew subscription", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, err
	}

	// Keep the plan code on the tenant row in sync
	if tenant.PlanCode != req.PlanCode {
		if _, updErr := s.store.UpdateTenant(ctx, tenantID, map[string]any{"plan_code": req.PlanCode}); updErr != nil {
			s.logger.Error("failed to sync tenant plan code", zap.String("tenant_id", tenantID), zap.Error(updErr))
		}
	}

	s.logger.Info("subscription renewed",
		zap.String("tenant_id", tenantID),
		zap.String("plan", req.PlanCode),
		zap.Int("months", req.PeriodMonths),
		zap.Time("expires_at", sub.ExpiresAt),
	)

	return sub, nil
}

func validPlanCode(code string) bool {
	switch code {
	case domain.PlanBasic, domain.PlanBusiness, domain.PlanGold:
		return true
	}
	return false
}

// ============================================================
// Backup runs
// ============================================================

// RequestBackup records a backup run and executes it under the
// bulkhead so a burst of requests cannot saturate the backend.
func (s *TenantService) RequestBackup(ctx context.Context, tenantID, requestedBy string) (*domain.BackupRun, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.RequestBackup")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("backup_request", time.Since(start)) }()

	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	run, err := s.store.CreateBackupRun(ctx, &domain.BackupRun{
		TenantID:    tenantID,
		Status:      domain.BackupRequested,
		RequestedBy: requestedBy,
	})
	if err != nil {
		s.logger.Error("failed to create backup run", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, err
	}

	go s.executeBackup(run)

	s.logger.Info("backup requested",
		zap.String("tenant_id", tenantID),
		zap.String("backup_id", run.ID),
		zap.String("requested_by", requestedBy),
	)

	return run, nil
}

// executeBackup runs in its own goroutine with a fresh context: the
// handoff must happen even if the requesting call returns first. The
// dump itself is produced by the external backup worker, which watches
// for running rows and reports size, storage key and the final
// completed/failed status back through the backup_runs table. This
// service's responsibility ends at marking the run running.
func (s *TenantService) executeBackup(run *domain.BackupRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.backups.Acquire(ctx); err != nil {
		s.failBackup(ctx, run.ID, "backup queue timed out")
		return
	}
	defer s.backups.Release()

	if err := s.store.UpdateBackupRun(ctx, run.ID, map[string]any{
		"status": domain.BackupRunning,
	}); err != nil {
		s.failBackup(ctx, run.ID, err.Error())
		return
	}

	s.logger.Info("backup handed to worker",
		zap.String("backup_id", run.ID),
		zap.String("tenant_id", run.TenantID),
	)
}

func (s *TenantService) failBackup(ctx context.Context, backupID, reason string) {
	if err := s.store.UpdateBackupRun(ctx, backupID, map[string]any{
		"status": domain.BackupFailed,
		"error":  reason,
	}); err != nil {
		s.logger.Error("failed to mark backup failed", zap.String("backup_id", backupID), zap.Error(err))
	}
	s.logger.Warn("backup failed", zap.String("backup_id", backupID), zap.String("reason", reason))
}

func (s *TenantService) ListBackups(ctx context.Context, tenantID string, page, pageSize int) ([]domain.BackupRun, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.ListBackups")
	defer span.End()

	return s.store.ListBackupRuns(ctx, tenantID, page, pageSize)
}

func (s *TenantService) GetBackup(ctx context.Context, backupID string) (*domain.BackupRun, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.GetBackup")
	defer span.End()

	return s.store.GetBackupRun(ctx, backupID)
}

// RestoreBackup marks a completed backup as restoring. Only completed
// or previously restored runs can be restored again.
func (s *TenantService) RestoreBackup(ctx context.Context, backupID string) (*domain.BackupRun, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.RestoreBackup")
	defer span.End()

	run, err := s.store.GetBackupRun(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.BackupCompleted && run.Status != domain.BackupRestored {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot restore backup with status '%s'", run.Status)}
	}

	if err := s.store.UpdateBackupRun(ctx, backupID, map[string]any{
		"status": domain.BackupRestoring,
	}); err != nil {
		return nil, err
	}
	run.Status = domain.BackupRestoring

	s.logger.Info("backup restore started", zap.String("backup_id", backupID), zap.String("tenant_id", run.TenantID))
	return run, nil
}
