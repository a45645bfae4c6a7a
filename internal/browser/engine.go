// Package browser manages the shared headless browser process and the
// isolated sessions handed out to render requests.
package browser

import (
	"context"
	"time"

	"github.com/jmylchreest/renderd/internal/cookies"
)

// Engine launches browser processes.
type Engine interface {
	Launch(ctx context.Context) (Handle, error)
}

// Handle is a running browser process.
type Handle interface {
	// NewSession creates an isolated cookie/storage scope seeded with the
	// given cookies. Seeding is best-effort: a session without pre-loaded
	// cookies is preferable to a hard failure.
	NewSession(seed []cookies.Record) (Session, error)
	Close() error
}

// Session is an isolated cookie/storage scope within one browser process.
type Session interface {
	NewPage() (Page, error)
	Cookies() ([]cookies.Record, error)
	// SetCookies replaces the session's cookie set with exactly recs.
	SetCookies(recs []cookies.Record) error
	Close() error
}

// Page is a single navigable document view within a session.
type Page interface {
	// Navigate drives the page to url and blocks until the load event or
	// ctx cancellation. Callers that must not block run it in a goroutine.
	Navigate(ctx context.Context, url string) error
	// WaitSettled blocks until network activity settles or timeout elapses,
	// whichever comes first.
	WaitSettled(timeout time.Duration) error
	// Content returns the serialized DOM at this instant, whether or not
	// navigation has finished.
	Content() (string, error)
	Close() error
}
