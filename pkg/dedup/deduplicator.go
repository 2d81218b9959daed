package dedup

import (
	"context"
	"time"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"k8s.io/klog"
)

type Mode int

const (
	// ModeDeferred only checks at filter time. Fingerprints are written by
	// Commit once the ledger has confirmed the upload.
	ModeDeferred Mode = iota
	// ModeEager writes each fingerprint as soon as it passes the check.
	ModeEager
	// ModeSkip performs no checks and writes nothing. Every expense passes.
	ModeSkip
)

func (m Mode) String() string {
	switch m {
	case ModeEager:
		return "eager"
	case ModeSkip:
		return "skip"
	default:
		return "deferred"
	}
}

type Result struct {
	Unique     []Candidate
	Duplicates int
	// Degraded is set when the store could not be read and every expense was
	// let through unchecked.
	Degraded bool
}

// Deduplicator filters expenses already present in the store. One
// Deduplicator serves one run: fingerprints accepted earlier in the run count
// as seen even before they are committed.
type Deduplicator struct {
	store   Store
	mode    Mode
	now     func() time.Time
	pending map[string]struct{}
}

func New(store Store, mode Mode) *Deduplicator {
	return &Deduplicator{
		store:   store,
		mode:    mode,
		now:     time.Now,
		pending: map[string]struct{}{},
	}
}

func (d *Deduplicator) Mode() Mode {
	return d.mode
}

func (d *Deduplicator) Filter(ctx context.Context, expenses []cardimporter.Expense, holder cardimporter.Cardholder) Result {
	candidates := make([]Candidate, 0, len(expenses))
	for _, e := range expenses {
		candidates = append(candidates, Candidate{Expense: e, Fingerprint: Fingerprint(e, holder), Cardholder: holder.Name})
	}

	if d.mode == ModeSkip {
		klog.Warningf("Duplicate check disabled, passing all %d expenses for %s\n", len(candidates), holder.Name)
		return Result{Unique: candidates}
	}

	result := Result{Unique: make([]Candidate, 0, len(candidates))}
	for _, c := range candidates {
		if _, ok := d.pending[c.Fingerprint]; ok {
			result.Duplicates++
			continue
		}

		exists, err := d.store.Exists(ctx, c.Fingerprint)
		if err != nil {
			klog.Errorf("Duplicate check failed for %s, passing all %d expenses through unchecked: %v\n", holder.Name, len(candidates), err)
			return Result{Unique: candidates, Degraded: true}
		}
		if exists {
			result.Duplicates++
			continue
		}

		d.pending[c.Fingerprint] = struct{}{}
		if d.mode == ModeEager {
			if err := d.store.Record(ctx, newEntry(c, d.now())); err != nil {
				klog.Errorf("Failed to record fingerprint %s: %v\n", c.Fingerprint, err)
			}
		}

		result.Unique = append(result.Unique, c)
	}

	klog.Infof("Found %d new and %d duplicate expenses for %s\n", len(result.Unique), result.Duplicates, holder.Name)
	return result
}

// Commit records candidates the ledger accepted. Only deferred mode writes
// here; eager mode has already recorded and skip mode never does.
func (d *Deduplicator) Commit(ctx context.Context, confirmed []Candidate) (int, error) {
	if d.mode != ModeDeferred || len(confirmed) == 0 {
		return 0, nil
	}

	now := d.now()
	entries := make([]Entry, 0, len(confirmed))
	for _, c := range confirmed {
		entries = append(entries, newEntry(c, now))
	}

	return d.store.RecordBatch(ctx, entries)
}
