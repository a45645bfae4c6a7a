// Package handlers provides HTTP handlers for the render service API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/renderd/internal/config"
	"github.com/jmylchreest/renderd/internal/history"
	"github.com/jmylchreest/renderd/internal/render"
)

// Renderer produces a DOM snapshot for a URL within a wait budget.
type Renderer interface {
	Render(ctx context.Context, url string, waitBudget time.Duration) (*render.Result, error)
}

// ScrapeInput is the query surface of GET /scrape.
type ScrapeInput struct {
	URL  string  `query:"url" required:"true" doc:"Target page URL (http or https)"`
	Wait float64 `query:"wait" doc:"Seconds to wait before capturing the DOM; defaults to the configured budget"`
}

// ScrapeOutput carries the rendered HTML verbatim.
type ScrapeOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ScrapeHandler handles render requests.
type ScrapeHandler struct {
	renderer Renderer
	history  *history.Store // nil when history is disabled
	cfg      *config.Config
	logger   *slog.Logger
}

// NewScrapeHandler creates a scrape handler. history may be nil.
func NewScrapeHandler(renderer Renderer, hist *history.Store, cfg *config.Config, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{renderer: renderer, history: hist, cfg: cfg, logger: logger}
}

// Handle validates the request, runs the render and returns the snapshot.
// A slow or hung target still answers 200 with whatever DOM was captured at
// the deadline; only launch and capture failures surface as errors.
func (h *ScrapeHandler) Handle(ctx context.Context, in *ScrapeInput) (*ScrapeOutput, error) {
	if err := render.ValidateURL(in.URL); err != nil {
		return nil, huma.Error400BadRequest("url must start with http:// or https://")
	}

	wait := h.cfg.WaitDefault
	if in.Wait != 0 {
		wait = time.Duration(in.Wait * float64(time.Second))
		if wait < h.cfg.WaitMin || wait > h.cfg.WaitMax {
			return nil, huma.Error400BadRequest(fmt.Sprintf(
				"wait must be between %.3g and %.3g seconds",
				h.cfg.WaitMin.Seconds(), h.cfg.WaitMax.Seconds(),
			))
		}
	}

	res, err := h.renderer.Render(ctx, in.URL, wait)
	h.record(in.URL, wait, res, err)
	if err != nil {
		if errors.Is(err, render.ErrInvalidURL) {
			return nil, huma.Error400BadRequest("url must start with http:// or https://")
		}
		h.logger.Error("render failed", "url", in.URL, "error", err)
		return nil, huma.Error500InternalServerError("render failed")
	}

	return &ScrapeOutput{
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(res.HTML),
	}, nil
}

// record appends the outcome to the render history, when enabled.
func (h *ScrapeHandler) record(url string, wait time.Duration, res *render.Result, renderErr error) {
	if h.history == nil {
		return
	}

	e := &history.Entry{
		URL:    url,
		WaitMS: wait.Milliseconds(),
		Status: "ok",
	}
	if res != nil {
		e.ID = res.RenderID
		e.DurationMS = res.Duration.Milliseconds()
		e.Bytes = len(res.HTML)
	}
	if renderErr != nil {
		e.Status = "error"
		e.Error = renderErr.Error()
	}
	if e.ID == "" {
		e.ID = newHistoryID()
	}

	if err := h.history.Record(e); err != nil {
		h.logger.Warn("failed to record render history", "error", err)
	}
}

// newHistoryID mints an ID for history rows of renders that failed before an
// ID was assigned.
func newHistoryID() string {
	return ulid.Make().String()
}
