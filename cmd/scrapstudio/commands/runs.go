package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/scrapstudio/results"
)

// RunsCmd lists past engine runs
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the run history, newest first",
	Long: `Show past engine runs across all jobs with their result and contact
counters. Export a single run with "scrapstudio export --run <id>".

Examples:
  scrapstudio runs
  scrapstudio runs --q Avocats --limit 20
  scrapstudio runs --json`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	RunsCmd.Flags().String("q", "", "Only runs whose name contains this text")
	RunsCmd.Flags().Int("limit", results.DefaultHistoryLimit, "Maximum runs to show (1-1000)")
	RunsCmd.Flags().BoolP("json", "j", false, "Output the history as JSON")
}

type runJSON struct {
	ID         int64      `json:"id"`
	JobID      string     `json:"job_id"`
	Name       string     `json:"name"`
	Profession string     `json:"profession"`
	Country    string     `json:"country"`
	Language   string     `json:"language"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	RunMS      int64      `json:"run_ms"`
	Total      int        `json:"total_results"`
	Emails     int        `json:"emails_count"`
	Phones     int        `json:"phones_count"`
	WhatsApp   int        `json:"whatsapp_count"`
	LineID     int        `json:"line_id_count"`
	Telegram   int        `json:"telegram_count"`
	WeChat     int        `json:"wechat_count"`
	Error      string     `json:"error,omitempty"`
}

func runRuns(cmd *cobra.Command, args []string) error {
	q, _ := cmd.Flags().GetString("q")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, closeDB, err := resultsStore()
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := store.History(cmd.Context(), results.HistoryFilter{Query: q, Limit: limit})
	if err != nil {
		return err
	}

	if jsonOutput {
		items := make([]runJSON, 0, len(runs))
		for _, r := range runs {
			items = append(items, runJSON{
				ID: r.ID, JobID: r.JobID, Name: r.Name, Profession: r.Profession,
				Country: r.Country, Language: r.Language, Status: r.Status,
				CreatedAt: r.CreatedAt, FinishedAt: r.FinishedAt, RunMS: r.RunMS,
				Total: r.Total, Emails: r.Emails, Phones: r.Phones,
				WhatsApp: r.WhatsApp, LineID: r.LineID, Telegram: r.Telegram, WeChat: r.WeChat,
				Error: r.Error,
			})
		}
		data, err := json.MarshalIndent(map[string]any{"items": items}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded yet")
		return nil
	}

	data := pterm.TableData{{"Run", "Started", "Type", "Country", "Lang", "Status", "Duration", "Results", "Emails", "Phones", "WhatsApp", "LINE", "Telegram", "WeChat"}}
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = (time.Duration(r.RunMS) * time.Millisecond).String()
		}
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10), r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Profession, r.Country, r.Language, r.Status, duration,
			strconv.Itoa(r.Total), strconv.Itoa(r.Emails), strconv.Itoa(r.Phones),
			strconv.Itoa(r.WhatsApp), strconv.Itoa(r.LineID), strconv.Itoa(r.Telegram), strconv.Itoa(r.WeChat),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
