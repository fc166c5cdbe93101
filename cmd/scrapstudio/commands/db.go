package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/db"
	"github.com/teranos/scrapstudio/errors"
)

// DbCmd groups database maintenance commands
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the results database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// openDatabase migrates on open
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		pterm.Success.Printf("Database %s is up to date\n", cfg.Database.Path)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.Open(cfg.Database.Path, nil)
		if err != nil {
			return errors.Wrapf(err, "failed to open database at %s", cfg.Database.Path)
		}
		defer database.Close()

		statuses, err := db.Status(database)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"Version", "File", "Applied"}}
		for _, s := range statuses {
			applied := "no"
			if s.Applied {
				applied = "yes"
			}
			data = append(data, []string{s.Version, s.File, applied})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatusCmd)
}
