package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/klog"
)

const DefaultLogFile = "data/transactionLog.json"

// fileEntry keeps the historical {"exists": true} shape; the other fields are
// optional so older logs still load.
type fileEntry struct {
	Exists     bool       `json:"exists"`
	PayeeName  string     `json:"payeeName,omitempty"`
	Date       string     `json:"date,omitempty"`
	Amount     int64      `json:"amount,omitempty"`
	Cardholder string     `json:"cardholder,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// FileStore is a JSON object on disk keyed by fingerprint. It is loaded once
// and rewritten after every record call.
type FileStore struct {
	mu       sync.Mutex
	filename string
	entries  map[string]fileEntry
}

func OpenFileStore(filename string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transaction log directory: %w", err)
	}

	s := &FileStore{filename: filename, entries: map[string]fileEntry{}}

	raw, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		klog.Infof("Starting new transaction log at %s\n", filename)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction log %s: %w", filename, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.entries); err != nil {
			return nil, fmt.Errorf("failed to parse transaction log %s: %w", filename, err)
		}
	}

	klog.Infof("Loaded %d fingerprints from %s\n", len(s.entries), filename)
	return s, nil
}

func (s *FileStore) Exists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entries[fingerprint].Exists, nil
}

func (s *FileStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.RecordBatch(ctx, []Entry{entry})
	return err
}

func (s *FileStore) RecordBatch(_ context.Context, entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := []string{}
	for _, entry := range entries {
		if s.entries[entry.Fingerprint].Exists {
			continue
		}

		createdAt := entry.CreatedAt
		s.entries[entry.Fingerprint] = fileEntry{
			Exists:     true,
			PayeeName:  entry.PayeeName,
			Date:       entry.Date,
			Amount:     entry.Amount,
			Cardholder: entry.Cardholder,
			CreatedAt:  &createdAt,
		}
		added = append(added, entry.Fingerprint)
	}

	if len(added) == 0 {
		return 0, nil
	}

	if err := s.write(); err != nil {
		// keep memory consistent with disk
		for _, fingerprint := range added {
			delete(s.entries, fingerprint)
		}
		return 0, err
	}

	return len(added), nil
}

func (s *FileStore) write() error {
	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transaction log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filename), ".transactionLog-*.json")
	if err != nil {
		return fmt.Errorf("failed to write transaction log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write transaction log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write transaction log: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.filename); err != nil {
		return fmt.Errorf("failed to replace transaction log %s: %w", s.filename, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
