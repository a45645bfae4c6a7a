package history

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStore_RecordAndRecent(t *testing.T) {
	s, err := NewStore(":memory:", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.Record(&Entry{
			ID:         string(rune('a' + i)),
			URL:        "http://example.com",
			WaitMS:     5000,
			DurationMS: int64(5100 + i),
			Status:     "ok",
			Bytes:      1024,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].ID != "c" || entries[1].ID != "b" {
		t.Errorf("order = [%s %s], want [c b]", entries[0].ID, entries[1].ID)
	}
	if !entries[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v, want %v", entries[0].CreatedAt, base.Add(2*time.Minute))
	}
}

func TestStore_RecordError(t *testing.T) {
	s, err := NewStore(":memory:", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Record(&Entry{ID: "x", URL: "http://bad.test", Status: "error", Error: "content capture failed"}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Status != "error" || entries[0].Error == "" {
		t.Errorf("entry = %+v, want error status and message", entries[0])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled in on record")
	}
}

func TestStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(&Entry{ID: "a", URL: "http://example.com", Status: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen and confirm the entry survived.
	s, err = NewStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Errorf("entries = %+v, want the persisted row", entries)
	}
}
