package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"seedharvest/pkg/logger"
)

// State is the on-disk layout of the ledger. The field names match the
// state.json written by earlier versions of the tool so existing files load
// unchanged. NextPage is the page the next run starts from.
type State struct {
	ProcessedIDs []string `json:"processed_torrent_ids"`
	NextPage     int      `json:"last_page_number"`
}

// Ledger is the durable record of processed item IDs and the page cursor.
// All methods are safe for concurrent use.
type Ledger struct {
	path   string
	logger logger.Logger

	mu        sync.RWMutex
	processed map[string]struct{}
	nextPage  int

	// serializes Persist so snapshots land on disk in order
	persistMu sync.Mutex
}

// New creates an empty ledger bound to path without touching the disk
func New(path string, log logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Ledger{
		path:      path,
		logger:    log.WithField("component", "ledger"),
		processed: make(map[string]struct{}),
		nextPage:  1,
	}
}

// Open creates a ledger and loads any existing state from path
func Open(path string, log logger.Logger) (*Ledger, error) {
	l := New(path, log)
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the file backing the ledger
func (l *Ledger) Path() string {
	return l.path
}

// IsProcessed reports whether id has been recorded
func (l *Ledger) IsProcessed(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.processed[id]
	return ok
}

// MarkProcessed records id. Recording an id twice is a no-op.
func (l *Ledger) MarkProcessed(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed[id] = struct{}{}
}

// NextPage returns the page the next listing pass should start from
func (l *Ledger) NextPage() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextPage
}

// SetNextPage moves the cursor; values below 1 are coerced to 1
func (l *Ledger) SetNextPage(page int) {
	if page < 1 {
		page = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextPage = page
}

// Len returns the number of processed ids
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.processed)
}

// Snapshot returns a consistent copy of the ledger state with ids sorted
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	ids := make([]string, 0, len(l.processed))
	for id := range l.processed {
		ids = append(ids, id)
	}
	page := l.nextPage
	l.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return State{ProcessedIDs: ids, NextPage: page}
}

// Persist writes the ledger to disk atomically: the state is encoded into
// a temporary file next to the target, synced, and renamed over it.
func (l *Ledger) Persist() error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	state := l.Snapshot()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	tempPath := l.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}

	if err := encode(file, state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync ledger file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close ledger file: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	l.logger.DebugWithFields("Ledger saved", map[string]interface{}{
		"processed": len(state.ProcessedIDs),
		"next_page": state.NextPage,
	})
	return nil
}

// Reload replaces the in-memory state with the file contents. A missing
// file yields the empty state; an unreadable or corrupt file is an error
// and leaves the in-memory state untouched.
func (l *Ledger) Reload() error {
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.mu.Lock()
			l.processed = make(map[string]struct{})
			l.nextPage = 1
			l.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer file.Close()

	var raw struct {
		ProcessedIDs []flexID `json:"processed_torrent_ids"`
		NextPage     int      `json:"last_page_number"`
	}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode ledger %s: %w", l.path, err)
	}

	processed := make(map[string]struct{}, len(raw.ProcessedIDs))
	for _, id := range raw.ProcessedIDs {
		processed[string(id)] = struct{}{}
	}
	page := raw.NextPage
	if page < 1 {
		page = 1
	}

	l.mu.Lock()
	l.processed = processed
	l.nextPage = page
	l.mu.Unlock()

	l.logger.InfoWithFields("Ledger loaded", map[string]interface{}{
		"processed": len(processed),
		"next_page": page,
		"path":      l.path,
	})
	return nil
}

// Backup copies the current ledger file to <path>.backup and returns the
// backup path. It is a no-op returning "" when no file exists yet.
func (l *Ledger) Backup() (string, error) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	src, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open ledger for backup: %w", err)
	}
	defer src.Close()

	backupPath := l.path + ".backup"
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy ledger to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync backup file: %w", err)
	}

	l.logger.DebugWithFields("Ledger backed up", map[string]interface{}{"path": backupPath})
	return backupPath, nil
}

func encode(w io.Writer, state State) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(state)
}

// lessID orders numeric ids by value and everything else lexically
func lessID(a, b string) bool {
	if isDigits(a) && isDigits(b) {
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			return len(a) < len(b)
		}
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// flexID accepts ids written either as JSON strings or numbers
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid item id %s", data)
	}
	*f = flexID(n.String())
	return nil
}
