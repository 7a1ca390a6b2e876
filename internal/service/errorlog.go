package service

import (
	"context"
	"sync"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var logTracer = otel.Tracer("service/errorlog")

// subscriberBuffer is the per-client event queue. A subscriber that
// falls this far behind is dropped rather than backpressuring ingest.
const subscriberBuffer = 64

// ErrorLogService ingests client error events, persists them and fans
// them out to connected dashboard streams.
type ErrorLogService struct {
	store   port.LogStore
	metrics *observability.Metrics
	logger  *zap.Logger

	mu   sync.RWMutex
	subs map[chan *domain.ErrorEvent]struct{}
}

// NewErrorLogService creates a new error log service.
func NewErrorLogService(store port.LogStore, metrics *observability.Metrics, logger *zap.Logger) *ErrorLogService {
	return &ErrorLogService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		subs:    make(map[chan *domain.ErrorEvent]struct{}),
	}
}

// ============================================================
// Ingest & query
// ============================================================

// IngestEvent stores one client error event and broadcasts it live.
// Persistence failures are fatal; broadcast is best effort.
func (s *ErrorLogService) IngestEvent(ctx context.Context, ev *domain.ErrorEvent) (*domain.ErrorEvent, error) {
	ctx, span := logTracer.Start(ctx, "ErrorLogService.IngestEvent")
	defer span.End()

	if ev.Message == "" {
		return nil, &domain.ErrValidation{Field: "message", Message: "required"}
	}
	switch ev.Level {
	case domain.LevelError, domain.LevelWarn, domain.LevelInfo:
	case "":
		ev.Level = domain.LevelError
	default:
		return nil, &domain.ErrValidation{Field: "level", Message: "must be error, warn or info"}
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	ev.ReceivedAt = time.Now()

	stored, err := s.store.InsertErrorEvent(ctx, ev)
	if err != nil {
		s.logger.Error("failed to persist error event", zap.Error(err))
		return nil, err
	}

	s.metrics.IncrEventIngested(stored.Level)
	s.broadcast(stored)

	return stored, nil
}

func (s *ErrorLogService) ListEvents(ctx context.Context, q domain.ErrorEventQuery) ([]domain.ErrorEvent, error) {
	ctx, span := logTracer.Start(ctx, "ErrorLogService.ListEvents")
	defer span.End()

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 200 {
		q.PageSize = 50
	}
	if q.Level != "" && q.Level != domain.LevelError && q.Level != domain.LevelWarn && q.Level != domain.LevelInfo {
		return nil, &domain.ErrValidation{Field: "level", Message: "must be error, warn or info"}
	}

	return s.store.ListErrorEvents(ctx, q)
}

// ============================================================
// Live stream hub
// ============================================================

// Subscribe registers a dashboard stream and returns its event channel.
// The caller must call Unsubscribe when the connection closes.
func (s *ErrorLogService) Subscribe() chan *domain.ErrorEvent {
	ch := make(chan *domain.ErrorEvent, subscriberBuffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	n := len(s.subs)
	s.mu.Unlock()

	s.metrics.SetStreamClients(n)
	s.logger.Debug("log stream subscriber added", zap.Int("subscribers", n))
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (s *ErrorLogService) Unsubscribe(ch chan *domain.ErrorEvent) {
	s.mu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	n := len(s.subs)
	s.mu.Unlock()

	s.metrics.SetStreamClients(n)
	s.logger.Debug("log stream subscriber removed", zap.Int("subscribers", n))
}

// broadcast fans an event out to all subscribers. A full buffer means
// the client stopped reading; the event is dropped for that client so
// one stuck connection cannot stall the rest.
func (s *ErrorLogService) broadcast(ev *domain.ErrorEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("log stream subscriber too slow, dropping event",
				zap.String("event_id", ev.ID),
			)
		}
	}
}
