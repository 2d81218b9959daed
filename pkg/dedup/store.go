package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
)

// Store remembers fingerprints of expenses already sent to the ledger.
// Implementations must make Record idempotent per fingerprint.
type Store interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, entry Entry) error
	// RecordBatch returns how many entries were new.
	RecordBatch(ctx context.Context, entries []Entry) (int, error)
	Close() error
}

type Entry struct {
	Fingerprint string
	PayeeName   string
	Date        string
	Amount      int64
	Cardholder  string
	CreatedAt   time.Time
}

// Candidate is an expense that passed the duplicate check, with the
// fingerprint it was checked under.
type Candidate struct {
	Expense     cardimporter.Expense
	Fingerprint string
	Cardholder  string
}

func newEntry(c Candidate, createdAt time.Time) Entry {
	return Entry{
		Fingerprint: c.Fingerprint,
		PayeeName:   c.Expense.PayeeName,
		Date:        c.Expense.Date,
		Amount:      c.Expense.Amount.IntPart(),
		Cardholder:  c.Cardholder,
		CreatedAt:   createdAt,
	}
}

// Fingerprint identifies an expense across runs: payee, date, amount in
// milliunits and the cardholder key joined by "-".
func Fingerprint(e cardimporter.Expense, holder cardimporter.Cardholder) string {
	return fmt.Sprintf("%s-%s-%s-%s", e.PayeeName, e.Date, e.Amount.String(), holder.Key)
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (s *MemoryStore) Exists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[fingerprint]
	return ok, nil
}

func (s *MemoryStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.RecordBatch(ctx, []Entry{entry})
	return err
}

func (s *MemoryStore) RecordBatch(_ context.Context, entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, entry := range entries {
		if _, ok := s.entries[entry.Fingerprint]; ok {
			continue
		}
		s.entries[entry.Fingerprint] = entry
		added++
	}
	return added, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}
