package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/results"
)

// FiltersCmd prints the filter catalog a job can be launched with
var FiltersCmd = &cobra.Command{
	Use:   "filters",
	Short: "Show the types, countries and languages a job can use",
	Long: `Show the filter catalog. Any catalog table that is empty or unreadable is
replaced by the built-in list, so this command always answers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := resultsStore()
		if err != nil {
			return err
		}
		defer closeDB()

		f := store.Filters(cmd.Context())
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			data, err := json.MarshalIndent(f, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		pterm.DefaultSection.Println("Types")
		pterm.Println(strings.Join(f.Professions, ", "))
		pterm.DefaultSection.Println("Countries")
		pterm.Println(strings.Join(f.Countries, ", "))
		pterm.DefaultSection.Println("Languages")
		pterm.Println(strings.Join(f.Languages, ", "))
		return nil
	},
}

var filtersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the built-in filter lists in the catalog tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := resultsStore()
		if err != nil {
			return err
		}
		defer closeDB()

		err = store.SeedCatalog(cmd.Context(), results.Filters{
			Professions: results.DefaultProfessions,
			Countries:   results.DefaultCountries,
			Languages:   results.DefaultLanguages,
		})
		if err != nil {
			return err
		}
		pterm.Success.Println("Catalog seeded")
		return nil
	},
}

func init() {
	FiltersCmd.Flags().BoolP("json", "j", false, "Output the catalog as JSON")
	FiltersCmd.AddCommand(filtersSeedCmd)
}

func resultsStore() (*results.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { database.Close() }
	return results.NewStore(database, nil), closeDB, nil
}
