// Package render implements the bounded-wait render orchestrator.
//
// A render races page navigation against a wall-clock budget and captures the
// DOM at the deadline, whatever state the page is in. The contract is "best
// HTML obtainable by the deadline", not "HTML after a successful load": a
// hung or erroring page still produces a snapshot, and the caller's latency
// is bounded by the wait budget plus a small constant overhead.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/renderd/internal/browser"
	"github.com/jmylchreest/renderd/internal/cookies"
)

var (
	// ErrInvalidURL is returned for URLs outside the http/https schemes.
	ErrInvalidURL = errors.New("url must be absolute with http or https scheme")
	// ErrContentCapture is returned when the DOM snapshot itself could not
	// be taken. The pool is left alone: the browser may still be healthy.
	ErrContentCapture = errors.New("content capture failed")
)

// SessionPool hands out isolated browser sessions.
type SessionPool interface {
	Acquire(ctx context.Context) (browser.Session, error)
}

// Result is a completed render.
type Result struct {
	RenderID string
	HTML     string
	Duration time.Duration
}

// Orchestrator coordinates pool, page, timer and cookie jar for one render.
type Orchestrator struct {
	pool        SessionPool
	jar         *cookies.Store
	navTimeout  time.Duration
	settleGrace time.Duration
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator. settleGrace bounds the optional
// post-budget wait for network traffic to settle; 0 disables it.
func NewOrchestrator(pool SessionPool, jar *cookies.Store, navTimeout, settleGrace time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		pool:        pool,
		jar:         jar,
		navTimeout:  navTimeout,
		settleGrace: settleGrace,
		logger:      logger,
	}
}

// ValidateURL checks that rawURL is an absolute http or https URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// Render opens a page, starts navigation in the background, waits out the
// budget, then snapshots the DOM. Session cookies are harvested and merged
// into the jar on every exit path, success or not, before teardown.
func (o *Orchestrator) Render(ctx context.Context, rawURL string, waitBudget time.Duration) (*Result, error) {
	// Invalid URLs must never reach the pool.
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	start := time.Now()
	id := ulid.Make().String()
	log := o.logger.With("render_id", id, "url", rawURL)

	sess, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var page browser.Page
	defer func() {
		// Harvest happens after capture and before teardown, and runs even
		// when the render failed partway.
		o.harvest(sess, log)
		if page != nil {
			if cerr := page.Close(); cerr != nil {
				log.Debug("page close", "error", cerr)
			}
		}
		if cerr := sess.Close(); cerr != nil {
			log.Debug("session close", "error", cerr)
		}
	}()

	page, err = sess.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentCapture, err)
	}

	navCtx, cancelNav := context.WithTimeout(context.Background(), o.navTimeout)
	defer cancelNav()

	navDone := make(chan error, 1)
	go func() {
		navDone <- page.Navigate(navCtx, rawURL)
	}()

	log.Info("render started", "wait_budget", waitBudget)

	// Pure wall-clock wait: the snapshot moment does not depend on how far
	// navigation got.
	timer := time.NewTimer(waitBudget)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		cancelNav()
		return nil, ctx.Err()
	}

	// Opportunistically give late resources a bounded chance to settle.
	if o.settleGrace > 0 {
		if err := page.WaitSettled(o.settleGrace); err != nil {
			log.Debug("settle wait ended early", "error", err)
		}
	}

	html, capErr := page.Content()

	// Navigation that is still in flight is abandoned; one that failed is
	// logged and forgotten. Either way it never fails the render: the
	// snapshot above is the result.
	select {
	case navErr := <-navDone:
		if navErr != nil {
			log.Debug("navigation finished with error (ignored)", "error", navErr)
		}
	default:
		cancelNav()
		log.Debug("navigation still in flight at deadline, abandoned")
	}

	if capErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentCapture, capErr)
	}

	log.Info("render complete", "duration", time.Since(start).Round(time.Millisecond), "bytes", len(html))
	return &Result{RenderID: id, HTML: html, Duration: time.Since(start)}, nil
}

// harvest persists the session's current cookies. Persistence failures are
// logged only: durability trouble must not fail an otherwise-good render.
func (o *Orchestrator) harvest(sess browser.Session, log *slog.Logger) {
	recs, err := sess.Cookies()
	if err != nil {
		log.Warn("cookie harvest failed", "error", err)
		return
	}
	if _, _, err := o.jar.MergeUpsert(recs); err != nil {
		log.Warn("cookie persist failed", "error", err)
		return
	}
	log.Debug("cookies harvested", "count", len(recs))
}
