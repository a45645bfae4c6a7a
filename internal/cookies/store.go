package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrInvalidRecord is returned when a record with an empty name is submitted.
// Invalid records are skipped individually, never failing a whole batch.
var ErrInvalidRecord = errors.New("cookie record has no name")

// Store persists the cookie jar as a single JSON file.
//
// Every mutation rewrites the whole file: the new jar is written to a sibling
// temp file, synced, then renamed over the original, so a crash at any point
// never leaves a half-written jar on disk. A missing or unparsable file is
// treated as an empty jar, never a fatal error.
//
// Note the intentional asymmetry: MergeUpsert matches records on the
// (name, domain) identity key, while DeleteByName matches on name alone,
// ignoring domain. This mirrors the legacy behavior callers depend on.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the JSON file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load returns the persisted jar. Absent or corrupt storage degrades to an
// empty jar.
func (s *Store) Load() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Count returns the number of persisted records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loadLocked())
}

// Save atomically replaces the persisted jar with exactly jar.
func (s *Store) Save(jar []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(jar)
}

// MergeUpsert folds newRecords into the persisted jar and saves the result.
// Records matching an existing (name, domain) key replace that record in
// place; untouched records keep their order; genuinely new records are
// appended in input order. Records with an empty name are skipped and counted.
func (s *Store) MergeUpsert(newRecords []Record) (jar []Record, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := make([]Record, 0, len(newRecords))
	for _, r := range newRecords {
		if r.Name == "" {
			skipped++
			s.logger.Warn("skipping invalid cookie record", "error", ErrInvalidRecord, "domain", r.Domain)
			continue
		}
		valid = append(valid, r)
	}

	existing := s.loadLocked()

	pending := make(map[Key]Record, len(valid))
	order := make([]Key, 0, len(valid))
	for _, r := range valid {
		k := r.Identity()
		if _, seen := pending[k]; !seen {
			order = append(order, k)
		}
		pending[k] = r
	}

	merged := make([]Record, 0, len(existing)+len(valid))
	for _, r := range existing {
		if repl, ok := pending[r.Identity()]; ok {
			merged = append(merged, repl)
			delete(pending, r.Identity())
		} else {
			merged = append(merged, r)
		}
	}
	for _, k := range order {
		if r, ok := pending[k]; ok {
			merged = append(merged, r)
		}
	}

	if err := s.saveLocked(merged); err != nil {
		return nil, skipped, err
	}
	return merged, skipped, nil
}

// DeleteByName removes every record whose name appears in names, regardless
// of domain, and saves the result.
func (s *Store) DeleteByName(names []string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{}, len(names))
	for _, n := range names {
		doomed[n] = struct{}{}
	}

	existing := s.loadLocked()
	kept := make([]Record, 0, len(existing))
	for _, r := range existing {
		if _, ok := doomed[r.Name]; !ok {
			kept = append(kept, r)
		}
	}

	if err := s.saveLocked(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (s *Store) loadLocked() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cookie jar unreadable, treating as empty", "path", s.path, "error", err)
		}
		return []Record{}
	}

	var jar []Record
	if err := json.Unmarshal(data, &jar); err != nil {
		s.logger.Warn("cookie jar corrupt, treating as empty", "path", s.path, "error", err)
		return []Record{}
	}
	if jar == nil {
		return []Record{}
	}
	return jar
}

func (s *Store) saveLocked(jar []Record) error {
	if jar == nil {
		jar = []Record{}
	}

	data, err := json.MarshalIndent(jar, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookie jar: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cookie jar directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp jar file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp jar file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp jar file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp jar file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace cookie jar: %w", err)
	}
	return nil
}
