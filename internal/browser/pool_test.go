package browser

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/renderd/internal/cookies"
)

type fakeEngine struct {
	mu       sync.Mutex
	launches int
	failNext bool
}

func (e *fakeEngine) Launch(ctx context.Context) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launches++
	if e.failNext {
		e.failNext = false
		return nil, errors.New("no chrome here")
	}
	return &fakeHandle{}, nil
}

func (e *fakeEngine) launchCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launches
}

type fakeHandle struct {
	closed   bool
	sessions []*fakeSession
}

func (h *fakeHandle) NewSession(seed []cookies.Record) (Session, error) {
	s := &fakeSession{seed: seed}
	h.sessions = append(h.sessions, s)
	return s, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

type fakeSession struct {
	seed    []cookies.Record
	applied []cookies.Record
	closed  bool
}

func (s *fakeSession) NewPage() (Page, error) { return nil, errors.New("not implemented") }

func (s *fakeSession) Cookies() ([]cookies.Record, error) { return s.seed, nil }

func (s *fakeSession) SetCookies(recs []cookies.Record) error { s.applied = recs; return nil }

func (s *fakeSession) Close() error { s.closed = true; return nil }

func testJar(t *testing.T) *cookies.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return cookies.NewStore(filepath.Join(t.TempDir(), "cookies.json"), logger)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPool_ReusesBrowserAcrossAcquires(t *testing.T) {
	engine := &fakeEngine{}
	pool := NewPool(engine, testJar(t), time.Minute, testLogger())
	defer pool.Shutdown()

	for i := 0; i < 2; i++ {
		if _, err := pool.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}

	if got := engine.launchCount(); got != 1 {
		t.Errorf("launches = %d, want 1 (browser should be reused)", got)
	}
}

func TestPool_IdleEvictionRelaunches(t *testing.T) {
	engine := &fakeEngine{}
	pool := NewPool(engine, testJar(t), 20*time.Millisecond, testLogger())
	defer pool.Shutdown()

	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := engine.launchCount(); got != 2 {
		t.Errorf("launches = %d, want 2 (idle browser should be evicted)", got)
	}
}

func TestPool_SessionsAreNotShared(t *testing.T) {
	engine := &fakeEngine{}
	pool := NewPool(engine, testJar(t), time.Minute, testLogger())
	defer pool.Shutdown()

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("expected a fresh session per acquire")
	}
	if !first.(*fakeSession).closed {
		t.Error("expected previous session to be closed on re-acquire")
	}
}

func TestPool_SeedsSessionFromJar(t *testing.T) {
	jar := testJar(t)
	if err := jar.Save([]cookies.Record{{Name: "sid", Domain: "example.com", Value: "abc"}}); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(&fakeEngine{}, jar, time.Minute, testLogger())
	defer pool.Shutdown()

	sess, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	seed := sess.(*fakeSession).seed
	if len(seed) != 1 || seed[0].Name != "sid" {
		t.Errorf("seed = %+v, want the persisted jar", seed)
	}
}

func TestPool_LaunchFailurePropagatesAndRetries(t *testing.T) {
	engine := &fakeEngine{failNext: true}
	pool := NewPool(engine, testJar(t), time.Minute, testLogger())
	defer pool.Shutdown()

	_, err := pool.Acquire(context.Background())
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("err = %v, want ErrLaunchFailed", err)
	}

	// The failure must not leave the pool stuck: the next call retries.
	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after failed launch: %v", err)
	}
	if got := engine.launchCount(); got != 2 {
		t.Errorf("launches = %d, want 2", got)
	}
}

func TestPool_ApplyCookies(t *testing.T) {
	pool := NewPool(&fakeEngine{}, testJar(t), time.Minute, testLogger())
	defer pool.Shutdown()

	// No live session: must be a no-op.
	pool.ApplyCookies([]cookies.Record{{Name: "a", Value: "1"}})

	sess, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	recs := []cookies.Record{{Name: "a", Domain: "d", Value: "1"}}
	pool.ApplyCookies(recs)

	applied := sess.(*fakeSession).applied
	if len(applied) != 1 || applied[0].Name != "a" {
		t.Errorf("applied = %+v, want %+v", applied, recs)
	}
}

func TestPool_Shutdown(t *testing.T) {
	engine := &fakeEngine{}
	pool := NewPool(engine, testJar(t), time.Minute, testLogger())

	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	pool.Shutdown()
	pool.Shutdown() // idempotent

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}

	stats := pool.Stats()
	if stats.Running || stats.SessionActive {
		t.Errorf("stats after shutdown = %+v, want nothing running", stats)
	}
}
