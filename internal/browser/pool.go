package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/renderd/internal/cookies"
)

var (
	// ErrLaunchFailed is returned when the browser process could not be
	// started. Pool state is reset so the next call retries the launch.
	ErrLaunchFailed = errors.New("browser launch failed")
	// ErrPoolClosed is returned when trying to use a shut-down pool.
	ErrPoolClosed = errors.New("browser pool is closed")
)

// Pool owns at most one live browser process and one active session at a
// time. The browser is created lazily, shared across requests, and recycled
// after sitting idle longer than the configured timeout or on browser-level
// failure. Sessions are never shared: every Acquire tears down the previous
// session and hands out a fresh one seeded from the cookie jar.
//
// Acquire is the pool's sole serialization point; everything a request does
// after acquisition happens on its own session without further locking.
type Pool struct {
	mu          sync.Mutex
	engine      Engine
	jar         *cookies.Store
	idleTimeout time.Duration
	logger      *slog.Logger

	handle   Handle
	session  Session
	lastUsed time.Time
	launches int
	closed   bool
}

// Stats is a point-in-time snapshot of pool state for diagnostics.
type Stats struct {
	Running       bool      `json:"running"`
	SessionActive bool      `json:"sessionActive"`
	Launches      int       `json:"launches"`
	LastUsedAt    time.Time `json:"lastUsedAt"`
}

// NewPool creates a pool. The browser is not launched until first Acquire.
func NewPool(engine Engine, jar *cookies.Store, idleTimeout time.Duration, logger *slog.Logger) *Pool {
	return &Pool{
		engine:      engine,
		jar:         jar,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Acquire returns a fresh session on the shared browser, launching or
// relaunching the browser as needed. The previous session, if any, is closed
// first so callers never observe each other's cookies or storage.
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	if p.handle != nil && p.idleTimeout > 0 && time.Since(p.lastUsed) > p.idleTimeout {
		p.logger.Info("evicting idle browser", "idle", time.Since(p.lastUsed).Round(time.Second))
		p.evictLocked()
	}

	if p.handle == nil {
		h, err := p.engine.Launch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
		}
		p.handle = h
		p.launches++
	}

	if p.session != nil {
		if err := p.session.Close(); err != nil {
			p.logger.Debug("closing previous session", "error", err)
		}
		p.session = nil
	}

	sess, err := p.handle.NewSession(p.jar.Load())
	if err != nil {
		// A session that cannot be created means the browser itself is in a
		// bad way; evict so the next call relaunches.
		p.evictLocked()
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	p.session = sess
	p.lastUsed = time.Now()
	return sess, nil
}

// ApplyCookies pushes recs into the live session, if any, so the browser's
// in-memory state matches the store after cookie CRUD. Best-effort.
func (p *Pool) ApplyCookies(recs []cookies.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return
	}
	if err := p.session.SetCookies(recs); err != nil {
		p.logger.Warn("failed to apply cookies to live session", "error", err)
	}
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Running:       p.handle != nil,
		SessionActive: p.session != nil,
		Launches:      p.launches,
		LastUsedAt:    p.lastUsed,
	}
}

// Shutdown closes the session and browser. Idempotent and safe to call when
// nothing is running.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.evictLocked()
	p.logger.Info("browser pool shut down")
}

func (p *Pool) evictLocked() {
	if p.session != nil {
		if err := p.session.Close(); err != nil {
			p.logger.Debug("closing session during eviction", "error", err)
		}
		p.session = nil
	}
	if p.handle != nil {
		if err := p.handle.Close(); err != nil {
			p.logger.Warn("error closing browser", "error", err)
		}
		p.handle = nil
	}
}
