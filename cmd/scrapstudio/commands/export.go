package commands

import (
	"bufio"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/export"
	"github.com/teranos/scrapstudio/results"
)

// ExportCmd writes stored results as CSV
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored results as CSV",
	Long: `Export stored results, newest first, as delimited text with a fixed header.

The columns come from --template, else from export.schema, else from
export.template in am.toml.

Examples:
  scrapstudio export > results.csv
  scrapstudio export --template en --out results_en.csv --limit 500
  scrapstudio export --run 42 --out run_42.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	ExportCmd.Flags().StringP("template", "t", "", "Built-in column template ("+strings.Join(export.TemplateNames(), ", ")+")")
	ExportCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
	ExportCmd.Flags().Int("limit", -1, "Maximum records to export (default export.limit, 0 = all)")
	ExportCmd.Flags().Int64("run", 0, "Export only the results of this run (see \"scrapstudio runs\")")
}

func runExport(cmd *cobra.Command, args []string) error {
	template, _ := cmd.Flags().GetString("template")
	out, _ := cmd.Flags().GetString("out")
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetInt64("run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if limit < 0 {
		limit = cfg.Export.Limit
	}

	normalizer, err := export.NewFromConfig(cfg.Export, template)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := results.NewStore(database, nil)
	var records []export.Record
	if runID > 0 {
		records, err = store.RunRecords(cmd.Context(), runID)
	} else {
		records, err = store.Records(cmd.Context(), limit)
	}
	if err != nil {
		return err
	}

	if out == "" {
		w := bufio.NewWriter(cmd.OutOrStdout())
		if err := normalizer.Export(w, records); err != nil {
			return err
		}
		return w.Flush()
	}

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", out)
	}
	w := bufio.NewWriter(f)
	if err := normalizer.Export(w, records); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", out)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", out)
	}

	pterm.Success.Printf("Exported %d record(s) to %s\n", len(records), out)
	return nil
}
