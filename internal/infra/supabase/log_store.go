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
// LogStore implementation — client error events
// ============================================================

func (c *Client) InsertErrorEvent(ctx context.Context, ev *domain.ErrorEvent) (*domain.ErrorEvent, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertErrorEvent")
	defer span.End()

	row := map[string]any{
		"id":          uuid.New().String(),
		"level":       ev.Level,
		"message":     ev.Message,
		"stack":       ev.Stack,
		"url":         ev.URL,
		"user_agent":  ev.UserAgent,
		"occurred_at": ev.OccurredAt.Format(time.RFC3339),
		"received_at": ev.ReceivedAt.Format(time.RFC3339),
	}
	if ev.TenantID != "" {
		row["tenant_id"] = ev.TenantID
	}

	body, err := c.doPost(ctx, "error_events", row)
	if err != nil {
		return nil, err
	}

	var rows []domain.ErrorEvent
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode error event: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("error event insert returned no rows")
	}
	return &rows[0], nil
}

func (c *Client) ListErrorEvents(ctx context.Context, q domain.ErrorEventQuery) ([]domain.ErrorEvent, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListErrorEvents")
	defer span.End()

	offset := (q.Page - 1) * q.PageSize
	path := fmt.Sprintf("error_events?order=received_at.desc&offset=%d&limit=%d", offset, q.PageSize)
	if q.TenantID != "" {
		path += fmt.Sprintf("&tenant_id=eq.%s", q.TenantID)
	}
	if q.Level != "" {
		path += fmt.Sprintf("&level=eq.%s", q.Level)
	}

	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.ErrorEvent
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode error events: %w", err)
	}
	return rows, nil
}
