package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/bcaldwell/cardsync/pkg/dedup"
	"github.com/bcaldwell/cardsync/pkg/spreadsheet"
	"github.com/bcaldwell/cardsync/pkg/ynabsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	primary   = cardimporter.Cardholder{Name: "primary", Key: "false", AccountID: "3fa85f64-5717-4562-b3fc-2c963f66afa6"}
	secondary = cardimporter.Cardholder{Name: "secondary", Key: "true", AccountID: "9b2f5c3e-1d4a-4f6b-8c7d-0e1f2a3b4c5d"}
)

type recordingLedger struct {
	calls  [][]ynabsync.Transaction
	failOn map[int]bool
}

func (l *recordingLedger) CreateTransactions(_ context.Context, txs []ynabsync.Transaction) (*ynabsync.CreateTransactionsResponse, error) {
	call := len(l.calls)
	l.calls = append(l.calls, txs)
	if l.failOn[call] {
		return nil, errors.New("connection reset")
	}
	return &ynabsync.CreateTransactionsResponse{}, nil
}

func (l *recordingLedger) sent() []ynabsync.Transaction {
	all := []ynabsync.Transaction{}
	for _, call := range l.calls {
		all = append(all, call...)
	}
	return all
}

func newPipeline(store dedup.Store, mode dedup.Mode, ledger ynabsync.Ledger) *Pipeline {
	validator := &cardimporter.Validator{Now: func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }}
	mapper := cardimporter.NewMapper(cardimporter.NewCategoryMap([]cardimporter.CategoryMapping{{CardName: "Food", ID: "cat-food"}}))
	return New(mapper, validator, dedup.New(store, mode), ynabsync.NewUploader(ledger, ynabsync.DefaultBatchSize))
}

func cardRow(date, payee, category, billed, original string) spreadsheet.RawRow {
	return spreadsheet.RawRow{Sheet: "Sheet1", Row: 5, Cells: map[spreadsheet.Column]string{
		spreadsheet.ColumnDate:           date,
		spreadsheet.ColumnMerchant:       payee,
		spreadsheet.ColumnCategory:       category,
		spreadsheet.ColumnBilledAmount:   billed,
		spreadsheet.ColumnOriginalAmount: original,
	}}
}

func TestRunRowsSerialDateExpense(t *testing.T) {
	ledger := &recordingLedger{}
	p := newPipeline(dedup.NewMemoryStore(), dedup.ModeDeferred, ledger)

	result := p.RunRows(context.Background(), primary, []spreadsheet.RawRow{
		cardRow("45000", "Coffee Shop", "Food", "15.50", ""),
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Uploaded)

	sent := ledger.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "2023-03-15", sent[0].Date)
	assert.Equal(t, "Coffee Shop", sent[0].PayeeName)
	assert.Equal(t, int64(-15500), sent[0].Amount)
	assert.Equal(t, "cat-food", *sent[0].CategoryID)
	assert.Equal(t, primary.AccountID, sent[0].AccountID)
	assert.Equal(t, ynabsync.ImportID("Coffee Shop-2023-03-15--15500-false"), sent[0].ImportID)
}

func TestRunRowsKeepsSameExpenseForDifferentCardholders(t *testing.T) {
	ledger := &recordingLedger{}
	store := dedup.NewMemoryStore()
	p := newPipeline(store, dedup.ModeDeferred, ledger)
	rows := []spreadsheet.RawRow{cardRow("01-05-2024", "Market", "", "20", "")}

	first := p.RunRows(context.Background(), primary, rows)
	second := p.RunRows(context.Background(), secondary, rows)

	assert.Equal(t, 1, first.Unique)
	assert.Equal(t, 1, second.Unique)
	assert.Equal(t, 2, store.Len())
	assert.Len(t, ledger.sent(), 2)
}

func TestRunRowsRecordsOnlyConfirmedBatches(t *testing.T) {
	ledger := &recordingLedger{failOn: map[int]bool{1: true}}
	store := dedup.NewMemoryStore()
	p := newPipeline(store, dedup.ModeDeferred, ledger)

	rows := make([]spreadsheet.RawRow, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, cardRow("01-05-2024", fmt.Sprintf("Shop %03d", i), "", "10", ""))
	}

	result := p.RunRows(context.Background(), primary, rows)

	assert.False(t, result.Success)
	assert.Equal(t, 70, result.Uploaded)
	assert.Equal(t, 120, result.Unique)
	assert.Equal(t, 70, result.Recorded)
	assert.Equal(t, 70, store.Len())

	ctx := context.Background()
	for i, expected := range map[int]bool{0: true, 49: true, 50: false, 99: false, 100: true, 119: true} {
		exists, err := store.Exists(ctx, fmt.Sprintf("Shop %03d-2024-05-01--10000-false", i))
		require.NoError(t, err)
		assert.Equal(t, expected, exists, "shop %d", i)
	}

	// a rerun only sends what failed
	retry := &recordingLedger{}
	rerun := newPipeline(store, dedup.ModeDeferred, retry).RunRows(ctx, primary, rows)
	assert.True(t, rerun.Success)
	assert.Equal(t, 70, rerun.Duplicates)
	assert.Equal(t, 50, rerun.Uploaded)
	assert.Equal(t, 120, store.Len())
}

func TestRunRowsDropsRowWithoutAmount(t *testing.T) {
	ledger := &recordingLedger{}
	p := newPipeline(dedup.NewMemoryStore(), dedup.ModeDeferred, ledger)

	result := p.RunRows(context.Background(), primary, []spreadsheet.RawRow{
		cardRow("01-05-2024", "No Amount", "", "", ""),
	})

	assert.Zero(t, result.Mapped)
	assert.True(t, result.Success)
	assert.Empty(t, ledger.calls)
}

func TestRunRowsDropsInvalidExpenses(t *testing.T) {
	ledger := &recordingLedger{}
	p := newPipeline(dedup.NewMemoryStore(), dedup.ModeDeferred, ledger)

	result := p.RunRows(context.Background(), primary, []spreadsheet.RawRow{
		cardRow("01-05-2024", "Fine", "", "10", ""),
		cardRow("01-05-2030", "Future", "", "10", ""),
		cardRow("01-05-2010", "Ancient", "", "10", ""),
	})

	assert.Equal(t, 3, result.Mapped)
	assert.Equal(t, 1, result.Valid)
	require.Len(t, ledger.sent(), 1)
	assert.Equal(t, "Fine", ledger.sent()[0].PayeeName)
}

func TestRunRowsDryRunDoesNotRecord(t *testing.T) {
	store := dedup.NewMemoryStore()
	p := newPipeline(store, dedup.ModeDeferred, ynabsync.DryRunLedger{}).DryRun(true)

	result := p.RunRows(context.Background(), primary, []spreadsheet.RawRow{cardRow("01-05-2024", "Shop", "", "10", "")})

	assert.Equal(t, 1, result.Uploaded)
	assert.Zero(t, result.Recorded)
	assert.Zero(t, store.Len())
}

func TestRunReadsWorkbook(t *testing.T) {
	f := excelize.NewFile()
	header := []interface{}{"תאריך עסקה", "שם בית העסק", "קטגוריה", "סכום חיוב", "סכום עסקה מקורי"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &header))
	row := []interface{}{45000, "Coffee Shop", "Food", 15.5, 15.5}
	require.NoError(t, f.SetSheetRow("Sheet1", "A5", &row))

	workbook := filepath.Join(t.TempDir(), "primary.xlsx")
	require.NoError(t, f.SaveAs(workbook))

	holder := primary
	holder.Workbook = workbook
	ledger := &recordingLedger{}

	results, err := newPipeline(dedup.NewMemoryStore(), dedup.ModeDeferred, ledger).RunAll(context.Background(), []cardimporter.Cardholder{holder})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Extracted)
	assert.Equal(t, 1, results[0].Uploaded)
	assert.Equal(t, "primary", results[0].Cardholder)
}

func TestRunAllStopsOnUnreadableWorkbook(t *testing.T) {
	holder := primary
	holder.Workbook = filepath.Join(t.TempDir(), "missing.xlsx")

	_, err := newPipeline(dedup.NewMemoryStore(), dedup.ModeDeferred, &recordingLedger{}).RunAll(context.Background(), []cardimporter.Cardholder{holder})
	assert.Error(t, err)
}

func TestRunAllRejectsCardholderWithoutAccount(t *testing.T) {
	ledger := &recordingLedger{}
	bad := cardimporter.Cardholder{Name: "secondary", Key: "true", Workbook: "unused.xlsx"}

	_, err := newPipeline(dedup.NewMemoryStore(), dedup.ModeDeferred, ledger).RunAll(context.Background(), []cardimporter.Cardholder{primary, bad})
	assert.ErrorContains(t, err, "secondary")
	assert.Empty(t, ledger.calls)
}

func TestRunRowsSkipModeSendsNoImportID(t *testing.T) {
	ledger := &recordingLedger{}
	store := dedup.NewMemoryStore()
	rows := []spreadsheet.RawRow{cardRow("01-05-2024", "Market", "", "20", "")}

	deferred := newPipeline(store, dedup.ModeDeferred, ledger).RunRows(context.Background(), primary, rows)
	require.Equal(t, 1, deferred.Recorded)

	backfill := newPipeline(store, dedup.ModeSkip, ledger).RunRows(context.Background(), primary, rows)
	assert.Equal(t, 1, backfill.Uploaded)
	assert.Zero(t, backfill.Recorded)

	sent := ledger.sent()
	require.Len(t, sent, 2)
	assert.NotEmpty(t, sent[0].ImportID)
	assert.Empty(t, sent[1].ImportID)
}

type repeatingLedger struct{}

func (repeatingLedger) CreateTransactions(_ context.Context, txs []ynabsync.Transaction) (*ynabsync.CreateTransactionsResponse, error) {
	response := &ynabsync.CreateTransactionsResponse{}
	response.Data.DuplicateImportIDs = []string{txs[0].ImportID}
	return response, nil
}

func TestRunRowsCountsExpensesAlreadyInLedger(t *testing.T) {
	store := dedup.NewMemoryStore()
	p := newPipeline(store, dedup.ModeDeferred, repeatingLedger{})

	result := p.RunRows(context.Background(), primary, []spreadsheet.RawRow{
		cardRow("01-05-2024", "Market", "", "20", ""),
		cardRow("02-05-2024", "Bakery", "", "5", ""),
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.AlreadyInLedger)
	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 2, store.Len())
}
