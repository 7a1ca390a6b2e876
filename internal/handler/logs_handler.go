package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/infra/observability"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ============================================================
// Error log ingest & dashboard — /v1/logs, /v1/admin/logs
// ============================================================

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboard origins are enforced by the CORS layer; the upgrader
	// accepts what reached it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func ingestLogHandler(svc *service.ErrorLogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/logs")
		defer span.End()

		var ev domain.ErrorEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// The tenant binding comes from the token, never the body.
		ev.TenantID = TenantIDFromContext(ctx)
		if ev.UserAgent == "" {
			ev.UserAgent = r.UserAgent()
		}

		stored, err := svc.IngestEvent(ctx, &ev)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, stored)
	}
}

func listLogsHandler(svc *service.ErrorLogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/logs")
		defer span.End()

		page, pageSize := parsePagination(r)
		q := domain.ErrorEventQuery{
			TenantID: r.URL.Query().Get("tenant_id"),
			Level:    r.URL.Query().Get("level"),
			Page:     page,
			PageSize: pageSize,
		}

		events, err := svc.ListEvents(ctx, q)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.ErrorEvent]{
			Data:     events,
			Total:    len(events),
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(events) == pageSize,
		})
	}
}

// streamLogsHandler upgrades to a WebSocket and pushes every ingested
// event to the admin dashboard. Browsers cannot set headers on a WS
// handshake, so the access token is also accepted as ?token=.
func streamLogsHandler(svc *service.ErrorLogService, authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 {
				token = parts[1]
			}
		}
		claims, err := authSvc.ValidateAccessToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if claims.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("log stream: upgrade failed", zap.Error(err))
			return
		}

		events := svc.Subscribe()
		defer svc.Unsubscribe(events)
		defer conn.Close()

		logger.Info("log stream client connected",
			zap.String("user_id", claims.Sub),
			zap.String("remote_addr", r.RemoteAddr),
		)

		// Reader goroutine: consume pongs and detect client close.
		done := make(chan struct{})
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("log stream: write failed, closing", zap.Error(err))
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				logger.Info("log stream client disconnected", zap.String("user_id", claims.Sub))
				return
			}
		}
	}
}

// ============================================================
// Metrics summary — GET /v1/admin/metrics/summary
// ============================================================

func metricsSummaryHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/admin/metrics/summary")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetDashboardSnapshot())
	}
}
