package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/bcaldwell/cardsync/pkg/dedup"
	"github.com/bcaldwell/cardsync/pkg/spreadsheet"
	"github.com/bcaldwell/cardsync/pkg/ynabsync"
	"k8s.io/klog"
)

// RunResult is the outcome of one cardholder's run.
type RunResult struct {
	Cardholder string
	Mode       dedup.Mode
	StartedAt  time.Time
	Duration   time.Duration

	Extracted  int
	Mapped     int
	Valid      int
	Duplicates int
	Unique     int
	Uploaded   int
	Recorded   int

	// AlreadyInLedger were accepted by the ledger as repeats of an import id
	// it had seen, nothing new was created for them.
	AlreadyInLedger int

	// Success is false when any upload batch failed.
	Success bool
	// Degraded is set when the duplicate check could not reach its store.
	Degraded bool
	// CommitErr is set when confirmed uploads could not be recorded; the
	// next run may send them again.
	CommitErr error
}

type Pipeline struct {
	mapper    *cardimporter.Mapper
	validator *cardimporter.Validator
	dedup     *dedup.Deduplicator
	uploader  *ynabsync.Uploader
	dryRun    bool
	now       func() time.Time
}

func New(mapper *cardimporter.Mapper, validator *cardimporter.Validator, deduplicator *dedup.Deduplicator, uploader *ynabsync.Uploader) *Pipeline {
	return &Pipeline{
		mapper:    mapper,
		validator: validator,
		dedup:     deduplicator,
		uploader:  uploader,
		now:       time.Now,
	}
}

// DryRun stops the pipeline from recording fingerprints after upload.
func (p *Pipeline) DryRun(dryRun bool) *Pipeline {
	p.dryRun = dryRun
	return p
}

// CheckCardholders fails when any cardholder cannot be uploaded for. It runs
// before any stage so a misconfigured holder never half-completes a run.
func CheckCardholders(holders []cardimporter.Cardholder) error {
	if len(holders) == 0 {
		return errors.New("no cardholders to sync")
	}

	for _, h := range holders {
		if !cardimporter.IsUUID(h.AccountID) {
			return fmt.Errorf("cardholder %s has no valid account id (got %q)", h.Name, h.AccountID)
		}
	}
	return nil
}

// RunAll runs each cardholder's workbook in turn. An unreadable workbook stops
// the run; results gathered so far are returned with the error.
func (p *Pipeline) RunAll(ctx context.Context, holders []cardimporter.Cardholder) ([]RunResult, error) {
	if err := CheckCardholders(holders); err != nil {
		return nil, err
	}

	results := make([]RunResult, 0, len(holders))
	for _, holder := range holders {
		result, err := p.Run(ctx, holder)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// Run extracts the cardholder's workbook and runs its rows.
func (p *Pipeline) Run(ctx context.Context, holder cardimporter.Cardholder) (RunResult, error) {
	if holder.Workbook == "" {
		return RunResult{}, fmt.Errorf("cardholder %s has no workbook", holder.Name)
	}

	rows, err := spreadsheet.Extract(holder.Workbook)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to read workbook for %s: %w", holder.Name, err)
	}

	return p.RunRows(ctx, holder, rows), nil
}

// RunRows pushes extracted rows through mapping, validation, duplicate
// filtering and upload, then records what the ledger confirmed.
func (p *Pipeline) RunRows(ctx context.Context, holder cardimporter.Cardholder, rows []spreadsheet.RawRow) RunResult {
	result := RunResult{
		Cardholder: holder.Name,
		Mode:       p.dedup.Mode(),
		StartedAt:  p.now(),
		Extracted:  len(rows),
	}

	expenses := p.mapper.MapRows(rows, holder)
	result.Mapped = len(expenses)

	valid := p.validator.ValidateExpenses(expenses)
	result.Valid = len(valid)

	filtered := p.dedup.Filter(ctx, valid, holder)
	result.Duplicates = filtered.Duplicates
	result.Unique = len(filtered.Unique)
	result.Degraded = filtered.Degraded

	// no import id in skip mode, the ledger accepts repeats without one
	skip := p.dedup.Mode() == dedup.ModeSkip
	transactions := make([]ynabsync.Transaction, 0, len(filtered.Unique))
	for _, c := range filtered.Unique {
		importID := ""
		if !skip {
			importID = ynabsync.ImportID(c.Fingerprint)
		}
		transactions = append(transactions, ynabsync.NewTransaction(c.Expense, importID))
	}

	upload := p.uploader.Upload(ctx, transactions)
	result.Uploaded = upload.Uploaded
	result.AlreadyInLedger = upload.Duplicates
	result.Success = upload.Success

	if !p.dryRun {
		recorded, err := p.dedup.Commit(ctx, confirmed(filtered.Unique, upload))
		if err != nil {
			klog.Errorf("Failed to record uploaded expenses for %s, they may be sent again next run: %v\n", holder.Name, err)
			result.CommitErr = err
		}
		result.Recorded = recorded
	}

	result.Duration = p.now().Sub(result.StartedAt)
	slog.Info("card sync finished",
		"cardholder", result.Cardholder,
		"mode", result.Mode.String(),
		"extracted", result.Extracted,
		"valid", result.Valid,
		"duplicates", result.Duplicates,
		"uploaded", result.Uploaded,
		"already_in_ledger", result.AlreadyInLedger,
		"total", result.Unique,
		"success", result.Success,
		"degraded", result.Degraded,
	)

	return result
}

// confirmed returns the candidates whose batch the ledger accepted. Batches
// line up with candidates because transactions were built in the same order.
func confirmed(candidates []dedup.Candidate, upload ynabsync.UploadResult) []dedup.Candidate {
	accepted := []dedup.Candidate{}
	for _, batch := range upload.Batches {
		if batch.Err != nil {
			continue
		}
		accepted = append(accepted, candidates[batch.Offset:batch.Offset+batch.Size]...)
	}
	return accepted
}
