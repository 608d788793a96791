package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasksync/pkg/logging"
)

const (
	mappingsDir  = "mappings"
	snapshotsDir = "snapshots"
	opsLogFile   = "ops-log.jsonl"
)

// ErrNotFound is returned when a mapping or snapshot does not exist.
// Absence is not a failure mode for the reconciler: a missing snapshot
// simply classifies the mapping as Unknown.
var ErrNotFound = errors.New("not found")

// Store is the file-backed persistence layer for mappings, snapshots and
// the operations audit log. One Store per workspace; cross-process use is
// out of scope. All writes go through a temp file and rename so a crash
// never leaves a half-written file.
type Store struct {
	mu       sync.RWMutex
	stateDir string
	opsFile  *os.File
}

// Open creates a Store rooted at the given state directory, creating the
// layout on first use.
func Open(stateDir string) (*Store, error) {
	for _, sub := range []string{mappingsDir, snapshotsDir} {
		if err := os.MkdirAll(filepath.Join(stateDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", sub, err)
		}
	}
	opsPath := filepath.Join(stateDir, opsLogFile)
	opsFile, err := os.OpenFile(opsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening op log %s: %w", opsPath, err)
	}
	return &Store{stateDir: stateDir, opsFile: opsFile}, nil
}

// Close releases the op-log handle. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opsFile == nil {
		return nil
	}
	err := s.opsFile.Close()
	s.opsFile = nil
	return err
}

// GetMapping returns the mapping for a local task ID.
func (s *Store) GetMapping(localID string) (Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMapping(localID)
}

// GetMappingByRemoteKey returns the mapping bound to a remote key.
func (s *Store) GetMappingByRemoteKey(remoteKey string) (Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mappings, err := s.readAllMappings()
	if err != nil {
		return Mapping{}, err
	}
	for _, m := range mappings {
		if m.RemoteKey == remoteKey {
			return m, nil
		}
	}
	return Mapping{}, ErrNotFound
}

// PutMapping stores a mapping, stamping UpdatedAt (and CreatedAt on first
// write).
func (s *Store) PutMapping(m Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.LocalID == "" || m.RemoteKey == "" {
		return fmt.Errorf("mapping needs both localId and remoteKey")
	}
	now := time.Now().UTC()
	if existing, err := s.readMapping(m.LocalID); err == nil {
		m.CreatedAt = existing.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return s.writeJSON(filepath.Join(s.stateDir, mappingsDir, sanitizeFilename(m.LocalID)+".json"), m)
}

// DeleteMapping removes a mapping and both of its snapshots.
func (s *Store) DeleteMapping(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.stateDir, mappingsDir, sanitizeFilename(localID)+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("removing mapping %s: %w", localID, err)
	}
	for _, side := range []Side{SideLocal, SideRemote} {
		snapPath := s.snapshotPath(localID, side)
		if err := os.Remove(snapPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("Store", "Could not remove snapshot %s: %v", snapPath, err)
		}
	}
	return nil
}

// ListMappings returns all mappings, sorted by file discovery order.
func (s *Store) ListMappings() ([]Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readAllMappings()
}

// GetSnapshot returns the stored snapshot for one side of a mapping.
func (s *Store) GetSnapshot(localID string, side Side) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	data, err := os.ReadFile(s.snapshotPath(localID, side))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("reading snapshot %s/%s: %w", localID, side, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		// A torn or corrupt snapshot is equivalent to a missing one.
		logging.Warn("Store", "Corrupt snapshot %s/%s, treating as absent: %v", localID, side, err)
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// PutSnapshot stores a snapshot, stamping UpdatedAt.
func (s *Store) PutSnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.LocalID == "" {
		return fmt.Errorf("snapshot needs a localId")
	}
	if snap.Side != SideLocal && snap.Side != SideRemote {
		return fmt.Errorf("invalid snapshot side %q", snap.Side)
	}
	snap.UpdatedAt = time.Now().UTC()
	return s.writeJSON(s.snapshotPath(snap.LocalID, snap.Side), snap)
}

// AppendOp appends one entry to the audit log. Entries get a UUID and a
// timestamp if the caller left them empty.
func (s *Store) AppendOp(entry OpEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opsFile == nil {
		return fmt.Errorf("store is closed")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding op entry: %w", err)
	}
	if _, err := s.opsFile.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending op entry: %w", err)
	}
	return nil
}

// ReadOps returns the audit log, oldest first. Debug/status views only.
func (s *Store) ReadOps() ([]OpEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(filepath.Join(s.stateDir, opsLogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading op log: %w", err)
	}
	var entries []OpEntry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e OpEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			logging.Warn("Store", "Skipping malformed op-log line: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) snapshotPath(localID string, side Side) string {
	return filepath.Join(s.stateDir, snapshotsDir, fmt.Sprintf("%s.%s.json", sanitizeFilename(localID), side))
}

func (s *Store) readMapping(localID string) (Mapping, error) {
	data, err := os.ReadFile(filepath.Join(s.stateDir, mappingsDir, sanitizeFilename(localID)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Mapping{}, ErrNotFound
		}
		return Mapping{}, fmt.Errorf("reading mapping %s: %w", localID, err)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return Mapping{}, fmt.Errorf("parsing mapping %s: %w", localID, err)
	}
	return m, nil
}

func (s *Store) readAllMappings() ([]Mapping, error) {
	dir := filepath.Join(s.stateDir, mappingsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	var mappings []Mapping
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		var m Mapping
		if err := json.Unmarshal(data, &m); err != nil {
			logging.Warn("Store", "Skipping malformed mapping file %s: %v", e.Name(), err)
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// writeJSON writes a JSON document atomically (write-then-rename).
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// sanitizeFilename keeps task IDs safe as file names.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(name)
}
