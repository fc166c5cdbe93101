package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/logger"
	"github.com/teranos/scrapstudio/scripts"
)

// ScriptsCmd groups the scraper script commands
var ScriptsCmd = &cobra.Command{
	Use:     "scripts",
	Aliases: []string{"sc"},
	Short:   "List, read, save and watch scraper scripts",
	Long: `Manage the scraper scripts the engine runs.

Every save replaces the script atomically and first copies the previous
version to a timestamped .bak file, so no edit is ever lost.

Examples:
  scrapstudio scripts ls
  scrapstudio scripts cat scraper_thailande.py
  scrapstudio scripts save scraper_thailande.py --file ./draft.py
  cat draft.py | scrapstudio scripts save scraper_thailande.py
  scrapstudio scripts backups scraper_thailande.py
  scrapstudio scripts cat scraper_thailande.py --backup 20261015T101500.123456Z`,
}

var scriptsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scripts with their git state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repository()
		if err != nil {
			return err
		}
		names, err := repo.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			pterm.Info.Printf("No scripts in %s\n", repo.Root())
			return nil
		}

		data := pterm.TableData{{"Script", "Backups", "Git"}}
		for _, name := range names {
			backups, err := repo.Backups(name)
			if err != nil {
				return err
			}
			state, err := repo.VCSStatus(name)
			if err != nil {
				logger.Debugw("VCS status unavailable", logger.FieldScript, name, "error", err)
				state = scripts.VCSNone
			}
			data = append(data, []string{name, strconv.Itoa(len(backups)), string(state)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var scriptsCatCmd = &cobra.Command{
	Use:   "cat <name>",
	Short: "Print a script, or one of its backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repository()
		if err != nil {
			return err
		}

		var content string
		if id, _ := cmd.Flags().GetString("backup"); id != "" {
			content, err = repo.ReadBackup(args[0], id)
		} else {
			content, err = repo.Read(args[0])
		}
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), content)
		return err
	},
}

var scriptsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Replace a script, keeping a backup of the previous version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repository()
		if err != nil {
			return err
		}

		var data []byte
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			data, err = os.ReadFile(file)
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return errors.Wrap(err, "failed to read new content")
		}

		backupID, err := repo.Save(cmd.Context(), args[0], string(data))
		if err != nil {
			return err
		}
		if backupID == "" {
			pterm.Success.Printf("Created %s\n", args[0])
		} else {
			pterm.Success.Printf("Saved %s (previous version: %s)\n", args[0], backupID)
		}
		return nil
	},
}

var scriptsBackupsCmd = &cobra.Command{
	Use:   "backups <name>",
	Short: "List the backups of a script, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repository()
		if err != nil {
			return err
		}
		backups, err := repo.Backups(args[0])
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			pterm.Info.Printf("%s has no backups\n", args[0])
			return nil
		}

		data := pterm.TableData{{"ID", "Created", "Size"}}
		for _, b := range backups {
			data = append(data, []string{b.ID, b.CreatedAt.Local().Format("2006-01-02 15:04:05"), strconv.FormatInt(b.Size, 10)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var scriptsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report script edits as they happen",
	Long: `Watch the script root and report every edit. When a project am.toml
exists it is watched too, and a change to scripts.root is reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repository()
		if err != nil {
			return err
		}

		w, err := scripts.NewWatcher(repo, func(c scripts.Change) {
			pterm.Info.Printf("%s %s\n", c.Op, c.Name)
		})
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()

		if path := am.FindProjectConfig(); path != "" {
			cw, err := am.NewConfigWatcher(path)
			if err != nil {
				return err
			}
			cw.OnReload(func(cfg *am.Config) error {
				if cfg.Scripts.Root != repo.Root() {
					pterm.Warning.Printf("scripts.root is now %s; restart watch to follow it\n", cfg.Scripts.Root)
				}
				return nil
			})
			cw.Start()
			defer cw.Stop()
		}

		pterm.Info.Printf("Watching %s (Ctrl-C to stop)\n", repo.Root())
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	scriptsCatCmd.Flags().String("backup", "", "Print the backup with this id instead of the live script")
	scriptsSaveCmd.Flags().StringP("file", "f", "", "Read the new content from this file instead of stdin")

	ScriptsCmd.AddCommand(scriptsLsCmd)
	ScriptsCmd.AddCommand(scriptsCatCmd)
	ScriptsCmd.AddCommand(scriptsSaveCmd)
	ScriptsCmd.AddCommand(scriptsBackupsCmd)
	ScriptsCmd.AddCommand(scriptsWatchCmd)
}

func repository() (*scripts.Repository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openRepository(cfg)
}
