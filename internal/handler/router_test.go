package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/handler"
	"github.com/zarrinbook/zarrinbook/internal/infra/cache"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/infra/resilience"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"go.uber.org/zap"
)

// stubTenantStore satisfies port.TenantStore with empty results, enough
// for the health check to probe the store.
type stubTenantStore struct{}

func (stubTenantStore) CreateTenant(_ context.Context, t *domain.Tenant) (*domain.Tenant, error) {
	return t, nil
}
func (stubTenantStore) ListTenants(_ context.Context, _, _ int) ([]domain.Tenant, error) {
	return nil, nil
}
func (stubTenantStore) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	return nil, &domain.ErrNotFound{Resource: "tenant", ID: tenantID}
}
func (stubTenantStore) GetTenantBySlug(_ context.Context, _ string) (*domain.Tenant, error) {
	return nil, nil
}
func (stubTenantStore) UpdateTenant(_ context.Context, _ string, _ map[string]any) (*domain.Tenant, error) {
	return nil, nil
}
func (stubTenantStore) UpdateTenantStatus(_ context.Context, _, _ string) error { return nil }
func (stubTenantStore) GetSubscription(_ context.Context, tenantID string) (*domain.Subscription, error) {
	return nil, &domain.ErrNotFound{Resource: "subscription", ID: tenantID}
}
func (stubTenantStore) UpsertSubscription(_ context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	return sub, nil
}
func (stubTenantStore) CreateBackupRun(_ context.Context, run *domain.BackupRun) (*domain.BackupRun, error) {
	return run, nil
}
func (stubTenantStore) ListBackupRuns(_ context.Context, _ string, _, _ int) ([]domain.BackupRun, error) {
	return nil, nil
}
func (stubTenantStore) GetBackupRun(_ context.Context, backupID string) (*domain.BackupRun, error) {
	return nil, &domain.ErrNotFound{Resource: "backup run", ID: backupID}
}
func (stubTenantStore) UpdateBackupRun(_ context.Context, _ string, _ map[string]any) error {
	return nil
}

func newTestRouter() (http.Handler, *observability.Metrics) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	gold := service.NewGoldPriceService(nil, cache.New[*domain.GoldPrice](time.Minute), metrics, logger)
	tenants := service.NewTenantService(stubTenantStore{}, resilience.NewBulkhead(1), metrics, logger)

	return handler.NewRouter(handler.Services{
		Tenants:      tenants,
		Invoices:     service.NewInvoiceService(nil, stubTenantStore{}, gold, "http://localhost:8080", metrics, logger),
		Installments: service.NewInstallmentService(nil, gold, metrics, logger),
		Gold:         gold,
		Logs:         service.NewErrorLogService(nil, metrics, logger),
		Auth:         service.NewAuthService(nil, "test-secret", time.Minute, time.Hour, logger),
	}, metrics, nil, logger), metrics
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestTenantRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter()

	for _, path := range []string{"/v1/invoices", "/v1/gold/spot"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/tenants", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequestsFeedDashboardCounters(t *testing.T) {
	router, metrics := newTestRouter()

	for _, path := range []string{"/healthz", "/readyz", "/v1/invoices"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	snapshot := metrics.GetDashboardSnapshot()
	if snapshot.TotalRequests != 3 {
		t.Errorf("expected 3 requests counted, got %d", snapshot.TotalRequests)
	}
	if snapshot.ErrorRate != 0 {
		t.Errorf("expected zero error rate for non-5xx traffic, got %f", snapshot.ErrorRate)
	}
}

func TestLogStreamRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/logs/stream", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
