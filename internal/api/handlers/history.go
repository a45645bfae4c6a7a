package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/renderd/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryInput is the query surface of GET /history.
type HistoryInput struct {
	Limit int `query:"limit" doc:"Maximum number of entries to return (default 50, max 500)"`
}

// HistoryOutput is the response for GET /history.
type HistoryOutput struct {
	Body []history.Entry
}

// HistoryHandler serves the render history log.
type HistoryHandler struct {
	store  *history.Store // nil when history is disabled
	logger *slog.Logger
}

// NewHistoryHandler creates a history handler. store may be nil.
func NewHistoryHandler(store *history.Store, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// Handle returns recent render entries, newest first.
func (h *HistoryHandler) Handle(ctx context.Context, in *HistoryInput) (*HistoryOutput, error) {
	if h.store == nil {
		return nil, huma.Error404NotFound("render history is disabled (set HISTORY_DB_PATH to enable)")
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.store.Recent(limit)
	if err != nil {
		h.logger.Error("failed to load render history", "error", err)
		return nil, huma.Error500InternalServerError("failed to load render history")
	}
	return &HistoryOutput{Body: entries}, nil
}
