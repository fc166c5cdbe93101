package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/engine"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/jobs"
	"github.com/teranos/scrapstudio/logger"
	"github.com/teranos/scrapstudio/results"
)

// RunCmd launches one scraping job and follows it to a terminal state
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a scraping job and follow it to completion",
	Long: `Launch a scraping job for one country, one or more types and a set of
languages. The engine runs once per (type, language) combination; results
land in the database and can be exported afterwards.

Languages default to all languages in the catalog. Interrupting the command
stops the engine and records the job as failed.

Examples:
  scrapstudio run --country Thaïlande --type Associations --type Avocats
  scrapstudio run --country France --type Traducteurs --language fr,en --keywords "assermenté"`,
	RunE: runJob,
}

func init() {
	RunCmd.Flags().String("country", "", "Target country (required)")
	RunCmd.Flags().StringSlice("type", nil, "Profession or category to scrape (repeatable)")
	RunCmd.Flags().StringSlice("language", nil, "Languages to scrape, or ALL (default ALL)")
	RunCmd.Flags().String("keywords", "", "Extra search keywords")
	RunCmd.Flags().Duration("poll", 500*time.Millisecond, "Status poll interval")
	_ = RunCmd.MarkFlagRequired("country")
}

func runJob(cmd *cobra.Command, args []string) error {
	country, _ := cmd.Flags().GetString("country")
	types, _ := cmd.Flags().GetStringSlice("type")
	languages, _ := cmd.Flags().GetStringSlice("language")
	keywords, _ := cmd.Flags().GetString("keywords")
	poll, _ := cmd.Flags().GetDuration("poll")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := results.NewStore(database, logger.ComponentLogger("results"))
	runner, err := engine.NewExecRunner(cfg.Engine.Command,
		time.Duration(cfg.Engine.TimeoutSeconds)*time.Second,
		logger.ComponentLogger("engine"))
	if err != nil {
		return err
	}
	adapter, err := engine.NewAdapter(runner, store, cfg.Engine, logger.ComponentLogger("engine"))
	if err != nil {
		return err
	}

	orch := jobs.New(adapter,
		jobs.WithLogger(logger.ComponentLogger("jobs")),
		jobs.WithLogLimit(cfg.Jobs.LogLimit),
		jobs.WithContext(cmd.Context()))
	defer orch.Stop()

	launched, err := orch.Launch(jobs.Parameters{
		Country:    country,
		Categories: types,
		Languages:  languages,
		Keywords:   keywords,
	})
	if err != nil {
		return err
	}
	pterm.DefaultHeader.Printf("Job %s", launched.ID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer close(sigChan)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			pterm.Warning.Println("Interrupted, stopping the engine...")
			orch.Stop()
		}
	}()

	spinner, _ := pterm.DefaultSpinner.Start("Starting engine...")
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var final jobs.Job
	for range ticker.C {
		j := orch.Drain()
		for _, line := range j.Log {
			pterm.Info.Println(line)
		}
		if j.Progress.Total > 0 {
			spinner.UpdateText(fmt.Sprintf("%d/%d combinations (%.0f%%)",
				j.Progress.Current, j.Progress.Total, j.Progress.Percentage()))
		}
		if j.Status.Terminal() {
			final = j
			break
		}
	}

	if final.Status == jobs.StatusFailed {
		spinner.Fail(fmt.Sprintf("Job failed after %s", final.Duration().Round(time.Millisecond)))
	} else {
		spinner.Success(fmt.Sprintf("Job completed in %s", final.Duration().Round(time.Millisecond)))
	}

	if err := renderRuns(store, cmd, final.ID); err != nil {
		return err
	}

	if final.Status == jobs.StatusFailed {
		return errors.Newf("job %s failed (%s): %s", final.ID, final.ErrorCode, final.Error)
	}
	return nil
}

func renderRuns(store *results.Store, cmd *cobra.Command, jobID string) error {
	runs, err := store.Runs(cmd.Context(), jobID)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	data := pterm.TableData{{"Run", "Type", "Language", "Status", "Results", "Emails", "Phones", "Error"}}
	for _, r := range runs {
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10), r.Profession, r.Language, r.Status,
			strconv.Itoa(r.Total), strconv.Itoa(r.Emails), strconv.Itoa(r.Phones), r.Error,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
