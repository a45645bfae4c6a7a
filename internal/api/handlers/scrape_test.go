package handlers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/renderd/internal/config"
	"github.com/jmylchreest/renderd/internal/history"
	"github.com/jmylchreest/renderd/internal/render"
)

type fakeRenderer struct {
	lastURL  string
	lastWait time.Duration
	result   *render.Result
	err      error
}

func (f *fakeRenderer) Render(ctx context.Context, url string, wait time.Duration) (*render.Result, error) {
	f.lastURL = url
	f.lastWait = wait
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig() *config.Config {
	return &config.Config{
		WaitMin:     500 * time.Millisecond,
		WaitMax:     10 * time.Second,
		WaitDefault: 5 * time.Second,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want a status error", err)
	}
	if se.GetStatus() != want {
		t.Errorf("status = %d, want %d", se.GetStatus(), want)
	}
}

func TestScrapeHandler_Handle(t *testing.T) {
	t.Run("returns rendered html", func(t *testing.T) {
		r := &fakeRenderer{result: &render.Result{RenderID: "01X", HTML: "<html>ok</html>", Duration: time.Second}}
		h := NewScrapeHandler(r, nil, testConfig(), quietLogger())

		out, err := h.Handle(context.Background(), &ScrapeInput{URL: "http://example.com"})
		if err != nil {
			t.Fatal(err)
		}
		if string(out.Body) != "<html>ok</html>" {
			t.Errorf("body = %q", out.Body)
		}
		if !strings.HasPrefix(out.ContentType, "text/html") {
			t.Errorf("content type = %q, want text/html", out.ContentType)
		}
	})

	t.Run("default wait budget", func(t *testing.T) {
		r := &fakeRenderer{result: &render.Result{HTML: "<html></html>"}}
		h := NewScrapeHandler(r, nil, testConfig(), quietLogger())

		if _, err := h.Handle(context.Background(), &ScrapeInput{URL: "http://example.com"}); err != nil {
			t.Fatal(err)
		}
		if r.lastWait != 5*time.Second {
			t.Errorf("wait = %v, want configured default 5s", r.lastWait)
		}
	})

	t.Run("explicit wait budget", func(t *testing.T) {
		r := &fakeRenderer{result: &render.Result{HTML: "<html></html>"}}
		h := NewScrapeHandler(r, nil, testConfig(), quietLogger())

		if _, err := h.Handle(context.Background(), &ScrapeInput{URL: "http://example.com", Wait: 2.5}); err != nil {
			t.Fatal(err)
		}
		if r.lastWait != 2500*time.Millisecond {
			t.Errorf("wait = %v, want 2.5s", r.lastWait)
		}
	})

	t.Run("wait out of range", func(t *testing.T) {
		h := NewScrapeHandler(&fakeRenderer{}, nil, testConfig(), quietLogger())

		for _, wait := range []float64{0.1, 60, -3} {
			_, err := h.Handle(context.Background(), &ScrapeInput{URL: "http://example.com", Wait: wait})
			if err == nil {
				t.Fatalf("wait=%v: expected error", wait)
			}
			assertStatus(t, err, 400)
		}
	})

	t.Run("invalid url scheme", func(t *testing.T) {
		h := NewScrapeHandler(&fakeRenderer{}, nil, testConfig(), quietLogger())

		_, err := h.Handle(context.Background(), &ScrapeInput{URL: "ftp://example.com"})
		assertStatus(t, err, 400)
	})

	t.Run("render failure maps to 500", func(t *testing.T) {
		r := &fakeRenderer{err: render.ErrContentCapture}
		h := NewScrapeHandler(r, nil, testConfig(), quietLogger())

		_, err := h.Handle(context.Background(), &ScrapeInput{URL: "http://example.com"})
		assertStatus(t, err, 500)
	})
}

func TestScrapeHandler_RecordsHistory(t *testing.T) {
	hist, err := history.NewStore(":memory:", quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	t.Run("success entry", func(t *testing.T) {
		r := &fakeRenderer{result: &render.Result{RenderID: "01OK", HTML: "<html>hi</html>", Duration: 1200 * time.Millisecond}}
		h := NewScrapeHandler(r, hist, testConfig(), quietLogger())

		if _, err := h.Handle(context.Background(), &ScrapeInput{URL: "http://example.com"}); err != nil {
			t.Fatal(err)
		}

		entries, err := hist.Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
		e := entries[0]
		if e.ID != "01OK" || e.Status != "ok" || e.Bytes != len("<html>hi</html>") || e.WaitMS != 5000 {
			t.Errorf("entry = %+v", e)
		}
	})

	t.Run("failure entry", func(t *testing.T) {
		r := &fakeRenderer{err: render.ErrContentCapture}
		h := NewScrapeHandler(r, hist, testConfig(), quietLogger())

		_, handleErr := h.Handle(context.Background(), &ScrapeInput{URL: "http://bad.test"})
		if handleErr == nil {
			t.Fatal("expected handler error")
		}

		entries, err := hist.Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		var found bool
		for _, e := range entries {
			if e.Status == "error" && e.URL == "http://bad.test" && e.ID != "" {
				found = true
			}
		}
		if !found {
			t.Errorf("no error entry recorded: %+v", entries)
		}
	})
}
