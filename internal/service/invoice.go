package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/port"

	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var invoiceTracer = otel.Tracer("service/invoice")

// InvoiceService handles invoice lifecycle, public sharing and QR codes.
type InvoiceService struct {
	store         port.InvoiceStore
	tenants       port.TenantStore
	gold          *GoldPriceService
	publicBaseURL string
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewInvoiceService creates a new invoice service.
func NewInvoiceService(store port.InvoiceStore, tenants port.TenantStore, gold *GoldPriceService, publicBaseURL string, metrics *observability.Metrics, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		store:         store,
		tenants:       tenants,
		gold:          gold,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		metrics:       metrics,
		logger:        logger,
	}
}

// ============================================================
// Invoices
// ============================================================

func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID string, req *domain.InvoiceCreateRequest) (*domain.Invoice, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.CreateInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("invoice.kind", req.Kind))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("invoice_create", time.Since(start)) }()

	if req.Kind != domain.InvoiceCurrency && req.Kind != domain.InvoiceGold {
		return nil, &domain.ErrValidation{Field: "kind", Message: fmt.Sprintf("must be '%s' or '%s'", domain.InvoiceCurrency, domain.InvoiceGold)}
	}
	if req.CustomerName == "" {
		return nil, &domain.ErrValidation{Field: "customer_name", Message: "required"}
	}

	inv := &domain.Invoice{
		TenantID:      tenantID,
		Kind:          req.Kind,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Lines:         req.Lines,
	}

	switch req.Kind {
	case domain.InvoiceCurrency:
		total := req.TotalAmount
		if total == 0 {
			total = sumLineAmounts(req.Lines)
		}
		if total <= 0 {
			return nil, &domain.ErrValidation{Field: "total_amount", Message: "must be positive"}
		}
		inv.TotalAmount = total

	case domain.InvoiceGold:
		weight := req.TotalGoldWeightMg
		if weight == 0 {
			weight = sumLineWeights(req.Lines)
		}
		if weight <= 0 {
			return nil, &domain.ErrValidation{Field: "total_gold_weight_mg", Message: "must be positive"}
		}
		inv.TotalGoldWeightMg = weight

		// Record the spot price at creation so the invoice carries the
		// reference valuation even though settlement floats later.
		spot, err := s.gold.GetSpot(ctx)
		if err != nil {
			return nil, err
		}
		inv.GoldPriceAtCreation = spot.PricePerGram
	}

	inv.Number = nextInvoiceNumber()

	created, err := s.store.CreateInvoice(ctx, inv)
	if err != nil {
		s.logger.Error("failed to create invoice", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("tenant_id", tenantID),
		zap.String("invoice_id", created.ID),
		zap.String("kind", created.Kind),
		zap.Int64("total_amount", created.TotalAmount),
		zap.Int64("total_gold_weight_mg", created.TotalGoldWeightMg),
	)

	return created, nil
}

func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Invoice, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.ListInvoices")
	defer span.End()

	return s.store.ListInvoices(ctx, tenantID, page, pageSize)
}

// GetInvoiceDetail returns an invoice together with its installment
// plans. The two reads are independent and run concurrently.
func (s *InvoiceService) GetInvoiceDetail(ctx context.Context, tenantID, invoiceID string) (*domain.Invoice, []domain.InstallmentPlan, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.GetInvoiceDetail")
	defer span.End()

	var (
		inv   *domain.Invoice
		plans []domain.InstallmentPlan
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inv, err = s.store.GetInvoice(gctx, tenantID, invoiceID)
		return err
	})
	g.Go(func() error {
		var err error
		plans, err = s.store.ListInstallmentPlans(gctx, tenantID, invoiceID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return inv, plans, nil
}

func (s *InvoiceService) CancelInvoice(ctx context.Context, tenantID, invoiceID string) error {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.CancelInvoice")
	defer span.End()

	inv, err := s.store.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status == domain.InvoicePaid || inv.Status == domain.InvoiceCancelled {
		return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("cannot cancel invoice with status '%s'", inv.Status)}
	}

	if err := s.store.UpdateInvoiceStatus(ctx, invoiceID, domain.InvoiceCancelled); err != nil {
		return err
	}

	s.logger.Info("invoice cancelled", zap.String("tenant_id", tenantID), zap.String("invoice_id", invoiceID))
	return nil
}

// ============================================================
// Public sharing
// ============================================================

// ShareInvoice issues (or returns the existing) share token for an
// invoice and builds the public URL the tenant hands to their customer.
func (s *InvoiceService) ShareInvoice(ctx context.Context, tenantID, invoiceID string) (*domain.InvoiceShareResponse, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.ShareInvoice")
	defer span.End()

	inv, err := s.store.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceCancelled {
		return nil, &domain.ErrValidation{Field: "status", Message: "cannot share a cancelled invoice"}
	}

	token := inv.ShareToken
	if token == "" {
		token, err = generateShareToken()
		if err != nil {
			return nil, fmt.Errorf("generate share token: %w", err)
		}
		if err := s.store.SetShareToken(ctx, invoiceID, token); err != nil {
			return nil, err
		}
		s.logger.Info("invoice share token issued",
			zap.String("tenant_id", tenantID),
			zap.String("invoice_id", invoiceID),
		)
	}

	return &domain.InvoiceShareResponse{
		ShareToken: token,
		PublicURL:  s.publicURL(token),
	}, nil
}

// GetPublicInvoice resolves a share token to the customer-facing view.
func (s *InvoiceService) GetPublicInvoice(ctx context.Context, token string) (*domain.PublicInvoice, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.GetPublicInvoice")
	defer span.End()

	inv, err := s.store.GetInvoiceByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceCancelled {
		return nil, &domain.ErrNotFound{Resource: "shared invoice", ID: token}
	}

	tenantName := ""
	if tenant, terr := s.tenants.GetTenant(ctx, inv.TenantID); terr == nil {
		tenantName = tenant.Name
	}

	return &domain.PublicInvoice{
		Number:            inv.Number,
		TenantName:        tenantName,
		Kind:              inv.Kind,
		CustomerName:      inv.CustomerName,
		Lines:             inv.Lines,
		TotalAmount:       inv.TotalAmount,
		TotalGoldWeightMg: inv.TotalGoldWeightMg,
		Status:            inv.Status,
		IssuedAt:          inv.CreatedAt,
	}, nil
}

// InvoiceQRCode renders the public URL of a shared invoice as a PNG.
// The invoice must have been shared first.
func (s *InvoiceService) InvoiceQRCode(ctx context.Context, tenantID, invoiceID string, size int) ([]byte, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.InvoiceQRCode")
	defer span.End()

	inv, err := s.store.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ShareToken == "" {
		return nil, &domain.ErrValidation{Field: "share_token", Message: "invoice has not been shared"}
	}

	if size < 128 || size > 1024 {
		size = 256
	}

	png, err := qrcode.Encode(s.publicURL(inv.ShareToken), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *InvoiceService) publicURL(token string) string {
	return fmt.Sprintf("%s/p/invoices/%s", s.publicBaseURL, token)
}

func sumLineAmounts(lines []domain.InvoiceLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Quantity * l.UnitAmount
	}
	return total
}

func sumLineWeights(lines []domain.InvoiceLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Quantity * l.UnitWeightMg
	}
	return total
}

// generateShareToken returns 16 random bytes hex-encoded. Tokens are
// unguessable but not secret: they gate read-only invoice views.
func generateShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// nextInvoiceNumber builds a human-readable invoice number: the issue
// date for the operator plus a random suffix, so concurrent creates
// within one tenant cannot collide on a shared timestamp.
func nextInvoiceNumber() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("INV-%s", time.Now().Format("20060102-150405.000000"))
	}
	return fmt.Sprintf("INV-%s-%s", time.Now().Format("20060102"), strings.ToUpper(hex.EncodeToString(b)))
}
