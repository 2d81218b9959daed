package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/bcaldwell/cardsync/pkg/config"
	"github.com/bcaldwell/cardsync/pkg/dedup"
	"github.com/bcaldwell/cardsync/pkg/pipeline"
	"github.com/bcaldwell/cardsync/pkg/ynabsync"
)

type syncOptions struct {
	eager              bool
	skipDuplicateCheck bool
	dryRun             bool
}

func (o syncOptions) mode() (dedup.Mode, error) {
	switch {
	case o.eager && o.skipDuplicateCheck:
		return 0, errors.New("--eager and --skip-duplicate-check cannot be combined")
	case o.eager && o.dryRun:
		return 0, errors.New("--eager records before upload and cannot be used with --dry-run")
	case o.skipDuplicateCheck:
		return dedup.ModeSkip, nil
	case o.eager:
		return dedup.ModeEager, nil
	default:
		return dedup.ModeDeferred, nil
	}
}

func (o *syncOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.eager, "eager", false, "record fingerprints before upload instead of after the ledger confirms")
	cmd.Flags().BoolVar(&o.skipDuplicateCheck, "skip-duplicate-check", false, "upload every expense without checking or recording fingerprints (backfill)")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "log what would be uploaded without uploading or recording")
}

func newSyncCommand() *cobra.Command {
	opts := &syncOptions{}
	var cardholders []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import every configured cardholder's workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			holders, err := selectCardholders(cardholders)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), *opts, holders)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringSliceVar(&cardholders, "cardholder", nil, "only sync these cardholders")

	return cmd
}

func newImportCommand() *cobra.Command {
	opts := &syncOptions{}
	var cardholder string

	cmd := &cobra.Command{
		Use:   "import <workbook>",
		Short: "Import a single workbook for one cardholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holders, err := selectCardholders([]string{cardholder})
			if err != nil {
				return err
			}
			holders[0].Workbook = args[0]
			return runSync(cmd.Context(), *opts, holders)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&cardholder, "cardholder", "", "cardholder the workbook belongs to (required)")
	_ = cmd.MarkFlagRequired("cardholder")

	return cmd
}

func runSync(ctx context.Context, opts syncOptions, holders []cardimporter.Cardholder) error {
	if ctx == nil {
		ctx = context.Background()
	}

	mode, err := opts.mode()
	if err != nil {
		return err
	}

	if err := pipeline.CheckCardholders(holders); err != nil {
		return err
	}

	categories, err := loadCategories()
	if err != nil {
		return err
	}

	ledger, err := newLedger(opts.dryRun)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open duplicate log: %w", err)
	}
	defer store.Close()

	p := pipeline.New(
		cardimporter.NewMapper(categories),
		cardimporter.NewValidator(),
		dedup.New(store, mode),
		ynabsync.NewUploader(ledger, config.CurrentYnabConfig().BatchSize),
	).DryRun(opts.dryRun)

	klog.Infof("Syncing %d cardholders in %s mode\n", len(holders), mode)
	results, runErr := p.RunAll(ctx, holders)

	if err := newReporter().Report(results); err != nil {
		klog.Errorf("Failed to report results: %v\n", err)
	}

	if runErr != nil {
		return runErr
	}

	failed := []string{}
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.Cardholder)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("some uploads failed for %v, rerun to retry them", failed)
	}
	return nil
}
