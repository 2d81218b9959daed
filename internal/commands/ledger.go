package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/bcaldwell/cardsync/pkg/config"
	"github.com/bcaldwell/cardsync/pkg/ynabsync"
)

func newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List budget categories and check the card category map against them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, err := newLookup()
			if err != nil {
				return err
			}

			categories, err := lookup.Categories()
			if err != nil {
				return err
			}

			categoryMap, err := loadCategories()
			if err != nil {
				return err
			}

			problems := ynabsync.VerifyCategoryMap(categoryMap, categories)
			if err := printCategories(cmd.OutOrStdout(), categories, problems); err != nil {
				return err
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d category mappings point at unusable categories", len(problems))
			}
			return nil
		},
	}
}

func newAccountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List budget accounts and check each cardholder's account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, err := newLookup()
			if err != nil {
				return err
			}

			accounts, err := lookup.Accounts()
			if err != nil {
				return err
			}

			holders, err := config.Cardholders()
			if err != nil {
				return err
			}

			return printAccounts(cmd.OutOrStdout(), accounts, holders)
		},
	}
}

func printCategories(out io.Writer, categories []ynabsync.Category, problems []ynabsync.CategoryProblem) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tCATEGORY\tID")
	for _, c := range categories {
		if c.Hidden {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Group, c.Name, c.ID)
	}
	for _, p := range problems {
		fmt.Fprintf(w, "! %s\t%s\t%s\n", p.CardName, p.Reason, p.CategoryID)
	}
	return w.Flush()
}

// printAccounts lists open accounts and reports every cardholder whose
// account is missing or closed. Problems are returned as an error.
func printAccounts(out io.Writer, accounts []ynabsync.Account, holders []cardimporter.Cardholder) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tTYPE\tBALANCE\tID")
	for _, a := range accounts {
		if a.Closed {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", a.Name, a.Type, a.Balance, a.ID)
	}
	fmt.Fprintln(w)

	failed := 0
	for _, h := range holders {
		a, err := ynabsync.AccountFor(h, accounts)
		if err != nil {
			failed++
			fmt.Fprintf(w, "! %s\t%v\n", h.Name, err)
			continue
		}
		fmt.Fprintf(w, "%s\t-> %s\n", h.Name, a.Name)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d cardholders have no usable account", failed)
	}
	return nil
}
