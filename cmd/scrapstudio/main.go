package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/cmd/scrapstudio/commands"
	"github.com/teranos/scrapstudio/logger"
)

var rootCmd = &cobra.Command{
	Use:   "scrapstudio",
	Short: "scrapstudio - run scrapers, edit their scripts, export what they found",
	Long: `scrapstudio - control surface for the scraping engine.

Launch a scraping job for a country, a set of types and languages, edit the
scraper scripts it runs with automatic backups, and export the collected
results to a fixed CSV schema.

Available commands:
  run      - Launch a scraping job and follow it to completion
  runs     - Show the run history
  scripts  - List, read, save and watch scraper scripts
  filters  - Show the types, countries and languages a job can use
  export   - Export stored results as CSV
  am       - Manage configuration ("I am")
  db       - Manage the results database
  version  - Show build information

Examples:
  scrapstudio run --country Thaïlande --type Associations --language fr
  scrapstudio scripts ls
  scrapstudio scripts save scraper_thailande.py --file ./draft.py
  scrapstudio export --template en --out results.csv`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		envFile, _ := cmd.Flags().GetString("env-file")
		return am.LoadDotEnv(envFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON on stderr")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file read before configuration (SCRAPMASTER_DB, SCRAPSTUDIO_* ...)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ScriptsCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.FiltersCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
