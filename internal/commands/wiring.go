package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/bcaldwell/cardsync/pkg/config"
	"github.com/bcaldwell/cardsync/pkg/dedup"
	"github.com/bcaldwell/cardsync/pkg/postgresutils"
	"github.com/bcaldwell/cardsync/pkg/report"
	"github.com/bcaldwell/cardsync/pkg/ynabsync"
)

const dedupBackendMemory = "memory"

func openStore(ctx context.Context) (dedup.Store, error) {
	dedupConfig := config.CurrentDedupConfig()

	switch dedupConfig.Backend {
	case config.DedupBackendFile:
		store, err := dedup.OpenFileStore(dedupConfig.File)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DedupBackendSQLite, config.DedupBackendPostgres:
		store, err := openSQLStore(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	case dedupBackendMemory:
		klog.Warningf("Using in-memory duplicate log, nothing will be remembered after this run\n")
		return dedup.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", dedupConfig.Backend)
	}
}

func openSQLStore(ctx context.Context) (*dedup.SQLStore, error) {
	dedupConfig := config.CurrentDedupConfig()

	var db *bun.DB
	var err error
	switch dedupConfig.Backend {
	case config.DedupBackendSQLite:
		if err := os.MkdirAll(filepath.Dir(dedupConfig.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		db, err = postgresutils.CreateSQLiteClient(dedupConfig.SQLitePath)
	case config.DedupBackendPostgres:
		db, err = postgresutils.CreatePostgresClient(dedupConfig.Database)
	default:
		return nil, fmt.Errorf("dedup backend %q is not a sql database", dedupConfig.Backend)
	}
	if err != nil {
		return nil, err
	}

	store, err := dedup.NewSQLStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func loadCategories() (cardimporter.CategoryMap, error) {
	categories := config.CurrentConfig().Categories
	if categories.Airtable.Table != "" {
		return cardimporter.LoadAirtableCategories(config.CurrentAirtableSecrets().AirtableAPIKey, categories.Airtable.BaseID, categories.Airtable.Table)
	}
	return cardimporter.LoadCategoryFile(categories.File)
}

func newLookup() (*ynabsync.Lookup, error) {
	token := config.CurrentYnabSecrets().YnabAccessToken
	budgetID := config.BudgetID()
	if token == "" || budgetID == "" {
		return nil, errors.New("YNAB_ACCESS_TOKEN and BUDGET_ID are required")
	}
	return ynabsync.NewLookup(token, budgetID), nil
}

func newLedger(dryRun bool) (ynabsync.Ledger, error) {
	if dryRun {
		return ynabsync.DryRunLedger{}, nil
	}

	token := config.CurrentYnabSecrets().YnabAccessToken
	budgetID := config.BudgetID()
	if token == "" || budgetID == "" {
		return nil, errors.New("YNAB_ACCESS_TOKEN and BUDGET_ID are required to upload")
	}
	return ynabsync.NewClient(config.CurrentYnabConfig().BaseURL, budgetID, token), nil
}

func newReporter() report.Reporter {
	reporters := report.Multi{report.LogReporter{}}

	influxSecrets := config.CurrentInfluxSecrets()
	influxConfig := config.CurrentConfig().Report.Influx
	if influxSecrets.InfluxEndpoint == "" || influxConfig.Database == "" {
		return reporters
	}

	client, err := report.CreateInfluxClient(influxSecrets.InfluxEndpoint, influxSecrets.InfluxUsername, influxSecrets.InfluxPassword)
	if err != nil {
		klog.Errorf("Error creating InfluxDB Client, skipping influx report: %v\n", err)
		return reporters
	}

	influxReporter, err := report.NewInfluxReporter(client, influxConfig.Database, influxConfig.Measurement)
	if err != nil {
		klog.Errorf("Skipping influx report: %v\n", err)
		return reporters
	}

	return append(reporters, influxReporter)
}

// selectCardholders returns the configured cardholders, or only the named ones.
func selectCardholders(names []string) ([]cardimporter.Cardholder, error) {
	holders, err := config.Cardholders()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return holders, nil
	}

	byName := make(map[string]cardimporter.Cardholder, len(holders))
	for _, h := range holders {
		byName[h.Name] = h
	}

	selected := make([]cardimporter.Cardholder, 0, len(names))
	for _, name := range names {
		h, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown cardholder %s", name)
		}
		selected = append(selected, h)
	}
	return selected, nil
}
