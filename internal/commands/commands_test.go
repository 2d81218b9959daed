package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/bcaldwell/cardsync/pkg/dedup"
	"github.com/bcaldwell/cardsync/pkg/ynabsync"
)

func TestSyncOptionsMode(t *testing.T) {
	mode, err := syncOptions{}.mode()
	require.NoError(t, err)
	assert.Equal(t, dedup.ModeDeferred, mode)

	mode, err = syncOptions{eager: true}.mode()
	require.NoError(t, err)
	assert.Equal(t, dedup.ModeEager, mode)

	mode, err = syncOptions{skipDuplicateCheck: true, dryRun: true}.mode()
	require.NoError(t, err)
	assert.Equal(t, dedup.ModeSkip, mode)

	_, err = syncOptions{eager: true, skipDuplicateCheck: true}.mode()
	assert.Error(t, err)

	_, err = syncOptions{eager: true, dryRun: true}.mode()
	assert.Error(t, err)
}

func TestFormatMilliunits(t *testing.T) {
	assert.Equal(t, "-15.50", formatMilliunits(-15500))
	assert.Equal(t, "0.00", formatMilliunits(0))
	assert.Equal(t, "1200.26", formatMilliunits(1200255))
}

func TestPrintStats(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printStats(out, dedup.Stats{
		Count:  3,
		Amount: -3900,
		Cardholders: []dedup.CardholderStats{
			{Cardholder: "primary", Count: 2, Amount: -3500},
			{Cardholder: "secondary", Count: 1, Amount: -400},
		},
	}))

	assert.Contains(t, out.String(), "primary")
	assert.Contains(t, out.String(), "-3.50")
	assert.Contains(t, out.String(), "-3.90")
}

func TestPrintHistory(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printHistory(out, dedup.ListResult{
		Entries: []dedup.Entry{{Date: "2024-05-01", PayeeName: "Cafe", Amount: -15500, Cardholder: "primary"}},
		Total:   41,
		Page:    2,
		Limit:   20,
	}))

	assert.Contains(t, out.String(), "Cafe")
	assert.Contains(t, out.String(), "page 2 of 3 (41 entries)")
}

func TestPrintAccounts(t *testing.T) {
	accounts := []ynabsync.Account{
		{ID: "3fa85f64-5717-4562-b3fc-2c963f66afa6", Name: "Visa", Type: "creditCard", Balance: -120.5},
	}

	out := &bytes.Buffer{}
	err := printAccounts(out, accounts, []cardimporter.Cardholder{
		{Name: "primary", AccountID: "3fa85f64-5717-4562-b3fc-2c963f66afa6"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "primary")
	assert.Contains(t, out.String(), "-> Visa")

	err = printAccounts(&bytes.Buffer{}, accounts, []cardimporter.Cardholder{{Name: "secondary"}})
	assert.Error(t, err)
}

func TestPrintCategories(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printCategories(out,
		[]ynabsync.Category{{ID: "c1", Name: "Groceries", Group: "Everyday"}, {ID: "c2", Name: "Old", Hidden: true}},
		[]ynabsync.CategoryProblem{{CardName: "Fuel", CategoryID: "c9", Reason: "unknown category"}},
	))

	assert.Contains(t, out.String(), "Groceries")
	assert.NotContains(t, out.String(), "Old")
	assert.Contains(t, out.String(), "! Fuel")
}

type fakeYnab struct {
	mu       sync.Mutex
	received []ynabsync.Transaction
	calls    int
}

func (f *fakeYnab) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	body := struct {
		Transactions []ynabsync.Transaction `json:"transactions"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.received = append(f.received, body.Transactions...)
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{"data":{"transaction_ids":[]}}`))
}

func TestImportCommand(t *testing.T) {
	fake := &fakeYnab{}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	dir := t.TempDir()
	t.Setenv("YNAB_ACCESS_TOKEN", "token")

	categoriesFile := filepath.Join(dir, "categories.json")
	require.NoError(t, os.WriteFile(categoriesFile, []byte(`[{"CardName": "Food", "id": "cat-food"}]`), 0o644))

	configFile := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(configFile, []byte(fmt.Sprintf(`
ynab:
  budgetId: budget-1
  baseUrl: %s
cardholders:
  - name: primary
    key: "false"
    accountId: 3fa85f64-5717-4562-b3fc-2c963f66afa6
categories:
  file: %s
dedup:
  backend: sqlite
  sqlitePath: %s
`, server.URL, categoriesFile, filepath.Join(dir, "data", "cardsync.db"))), 0o644))

	recent := time.Now().AddDate(0, 0, -3).Format("02-01-2006")
	f := excelize.NewFile()
	header := []interface{}{"תאריך עסקה", "שם בית העסק", "קטגוריה", "סכום חיוב", "סכום עסקה מקורי"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &header))
	for i, payee := range []string{"Coffee Shop", "Bakery"} {
		row := []interface{}{recent, payee, "Food", 15.5 + float64(i), ""}
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", 5+i), &row))
	}
	workbook := filepath.Join(dir, "statement.xlsx")
	require.NoError(t, f.SaveAs(workbook))

	run := func(args ...string) error {
		cmd := NewRootCommand()
		cmd.SetArgs(append(args,
			"--config", configFile,
			"--secrets", filepath.Join(dir, "missing.ejson"),
			"--env-file", filepath.Join(dir, "missing.env"),
		))
		cmd.SetOut(&bytes.Buffer{})
		return cmd.ExecuteContext(context.Background())
	}

	require.NoError(t, run("import", workbook, "--cardholder", "primary"))
	require.NoError(t, run("import", workbook, "--cardholder", "primary"))

	fake.mu.Lock()
	assert.Equal(t, 1, fake.calls)
	require.Len(t, fake.received, 2)
	assert.Equal(t, "Coffee Shop", fake.received[0].PayeeName)
	assert.Equal(t, int64(-15500), fake.received[0].Amount)
	assert.Equal(t, "cat-food", *fake.received[0].CategoryID)
	fake.mu.Unlock()

	history := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"history", "--query", "bakery",
		"--config", configFile,
		"--secrets", filepath.Join(dir, "missing.ejson"),
		"--env-file", filepath.Join(dir, "missing.env"),
	})
	cmd.SetOut(history)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, history.String(), "Bakery")
	assert.Contains(t, history.String(), "-16.50")

	assert.Error(t, run("import", workbook, "--cardholder", "nobody"))
}
