package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bcaldwell/cardsync/pkg/dedup"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the duplicate log per cardholder (sql backends)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSQLStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			return printStats(cmd.OutOrStdout(), stats)
		},
	}
}

func newHistoryCommand() *cobra.Command {
	opts := dedup.ListOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded expenses newest first (sql backends)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSQLStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			return printHistory(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "filter by payee or fingerprint")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "entries per page")

	return cmd
}

// formatMilliunits renders -15500 as -15.50.
func formatMilliunits(amount int64) string {
	return decimal.New(amount, -3).StringFixed(2)
}

func printStats(out io.Writer, stats dedup.Stats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CARDHOLDER\tEXPENSES\tAMOUNT")
	for _, c := range stats.Cardholders {
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.Cardholder, c.Count, formatMilliunits(c.Amount))
	}
	fmt.Fprintf(w, "total\t%d\t%s\n", stats.Count, formatMilliunits(stats.Amount))
	return w.Flush()
}

func printHistory(out io.Writer, result dedup.ListResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPAYEE\tAMOUNT\tCARDHOLDER\tRECORDED")
	for _, e := range result.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.PayeeName, formatMilliunits(e.Amount), e.Cardholder, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	pages := (result.Total + result.Limit - 1) / result.Limit
	_, err := fmt.Fprintf(out, "page %d of %d (%d entries)\n", result.Page, pages, result.Total)
	return err
}
