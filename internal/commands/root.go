package commands

import (
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog"

	"github.com/bcaldwell/cardsync/pkg/config"
)

type rootOptions struct {
	configFile  string
	secretsFile string
	configEnv   string
	envFiles    []string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cardsync",
		Short: "Import credit card statements into YNAB",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadConfig(opts.configEnv, opts.configFile, opts.secretsFile, opts.envFiles...)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "./config.yml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.secretsFile, "secrets", "./secrets.ejson", "ejson secrets file")
	rootCmd.PersistentFlags().StringVar(&opts.configEnv, "config-env", "CARDSYNC_CONFIG", "environment variable holding the whole yaml config")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(
		newSyncCommand(),
		newImportCommand(),
		newStatsCommand(),
		newHistoryCommand(),
		newCategoriesCommand(),
		newAccountsCommand(),
	)

	return rootCmd
}
