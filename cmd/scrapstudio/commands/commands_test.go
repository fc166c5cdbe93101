package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/db"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/export"
	"github.com/teranos/scrapstudio/results"
	"github.com/teranos/scrapstudio/scripts"
)

type studioEnv struct {
	scripts  string
	database string
}

func setupEnv(t *testing.T) studioEnv {
	t.Helper()
	dir := t.TempDir()
	env := studioEnv{
		scripts:  filepath.Join(dir, "scrapers"),
		database: filepath.Join(dir, "studio.db"),
	}
	require.NoError(t, os.Mkdir(env.scripts, 0755))

	t.Setenv("SCRAPSTUDIO_SCRIPTS_ROOT", env.scripts)
	t.Setenv("SCRAPSTUDIO_DATABASE_PATH", env.database)
	am.Reset()
	t.Cleanup(am.Reset)
	return env
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScriptsCommands_SaveCatBackup(t *testing.T) {
	env := setupEnv(t)

	_, err := execute(t, ScriptsCmd, "print(1)\n", "save", "scraper_france.py")
	require.NoError(t, err)
	_, err = execute(t, ScriptsCmd, "print(2)\n", "save", "scraper_france.py")
	require.NoError(t, err)

	out, err := execute(t, ScriptsCmd, "", "cat", "scraper_france.py", "--backup=")
	require.NoError(t, err)
	assert.Equal(t, "print(2)\n", out)

	backups, err := scripts.New(env.scripts).Backups("scraper_france.py")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	out, err = execute(t, ScriptsCmd, "", "cat", "scraper_france.py", "--backup", backups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", out)
}

func TestScriptsCommands_RejectsTraversal(t *testing.T) {
	env := setupEnv(t)

	_, err := execute(t, ScriptsCmd, "boom", "save", "../escape.py")
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(env.scripts), "escape.py"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportCommand_WritesHeaderAndRows(t *testing.T) {
	env := setupEnv(t)

	database, err := db.OpenWithMigrations(env.database, nil)
	require.NoError(t, err)
	store := results.NewStore(database, nil)
	ctx := context.Background()
	spec := results.RunSpec{JobID: "job-1", Profession: "Associations", Country: "Thaïlande", Language: "fr"}
	runID, err := store.StartRun(ctx, spec)
	require.NoError(t, err)
	_, err = store.SaveResults(ctx, runID, spec, []export.Record{
		{"name": "Alliance, Bangkok", "website": "https://af.example"},
	})
	require.NoError(t, err)
	require.NoError(t, database.Close())

	out, err := execute(t, ExportCmd, "", "--template", "en", "--limit", "0")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "name,category,"))
	assert.True(t, strings.HasPrefix(lines[1], `"Alliance, Bangkok",`))
}

func TestExportCommand_UnknownTemplate(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, ExportCmd, "", "--template", "klingon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export template")
}

func TestAmInit_RefusesOverwrite(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "am.toml")

	_, err := execute(t, AmCmd, "", "init", path)
	require.NoError(t, err)

	cfg, err := am.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Export.Template)

	_, err = execute(t, AmCmd, "", "init", path)
	require.Error(t, err)

	_, err = execute(t, AmCmd, "", "init", path, "--force")
	require.NoError(t, err)
	assert.FileExists(t, path+".back1")
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, VersionCmd, "", "--json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["go_version"])
	assert.NotEmpty(t, info["params_version"])
}

func TestRunCommand_EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	env := setupEnv(t)
	t.Setenv("SCRAPSTUDIO_ENGINE_COMMAND",
		`sh -c 'cat >/dev/null; echo "[{\"name\": \"Alliance\", \"website\": \"https://af.example\"}]"'`)

	_, err := execute(t, RunCmd, "", "--country", "Thaïlande", "--type", "Associations", "--language", "fr", "--poll", "10ms")
	require.NoError(t, err)

	database, err := db.Open(env.database, nil)
	require.NoError(t, err)
	defer database.Close()

	records, err := results.NewStore(database, nil).Records(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alliance", records[0]["name"])
}

func TestRunCommand_EngineFailureFailsCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	setupEnv(t)
	t.Setenv("SCRAPSTUDIO_ENGINE_COMMAND", `sh -c 'echo "no browser" >&2; exit 1'`)

	_, err := execute(t, RunCmd, "", "--country", "France", "--type", "Avocats", "--language", "fr", "--poll", "10ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no browser")
}

func seedTwoRuns(t *testing.T, path string) (int64, int64) {
	t.Helper()
	database, err := db.OpenWithMigrations(path, nil)
	require.NoError(t, err)
	defer database.Close()

	store := results.NewStore(database, nil)
	ctx := context.Background()
	ids := make([]int64, 0, 2)
	for _, seed := range []struct {
		spec results.RunSpec
		name string
	}{
		{results.RunSpec{JobID: "job-1", Profession: "Avocats", Country: "France", Language: "fr"}, "Cabinet Martin"},
		{results.RunSpec{JobID: "job-2", Profession: "Associations", Country: "Thaïlande", Language: "fr"}, "Alliance"},
	} {
		runID, err := store.StartRun(ctx, seed.spec)
		require.NoError(t, err)
		_, err = store.SaveResults(ctx, runID, seed.spec, []export.Record{
			{"name": seed.name, "whatsapp": "+66 81 000 0000"},
		})
		require.NoError(t, err)
		_, err = store.FinishRun(ctx, runID, nil)
		require.NoError(t, err)
		ids = append(ids, runID)
	}
	return ids[0], ids[1]
}

func TestRunsCommand_JSON(t *testing.T) {
	env := setupEnv(t)
	first, second := seedTwoRuns(t, env.database)

	out, err := execute(t, RunsCmd, "", "--json", "--q", "", "--limit", "100")
	require.NoError(t, err)

	var history struct {
		Items []struct {
			ID       int64  `json:"id"`
			JobID    string `json:"job_id"`
			Status   string `json:"status"`
			Total    int    `json:"total_results"`
			WhatsApp int    `json:"whatsapp_count"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history.Items, 2)
	assert.Equal(t, second, history.Items[0].ID)
	assert.Equal(t, first, history.Items[1].ID)
	assert.Equal(t, "job-2", history.Items[0].JobID)
	assert.Equal(t, 1, history.Items[0].Total)
	assert.Equal(t, 1, history.Items[0].WhatsApp)

	out, err = execute(t, RunsCmd, "", "--json", "--q", "Avocats", "--limit", "100")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history.Items, 1)
	assert.Equal(t, first, history.Items[0].ID)
}

func TestExportCommand_SingleRun(t *testing.T) {
	env := setupEnv(t)
	first, _ := seedTwoRuns(t, env.database)

	out, err := execute(t, ExportCmd, "", "--template", "en", "--limit", "0", "--run", strconv.FormatInt(first, 10))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "Cabinet Martin,"))

	_, err = execute(t, ExportCmd, "", "--template", "en", "--limit", "0", "--run", "999")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	// cobra keeps flag values between executions of the same command
	_, err = execute(t, ExportCmd, "", "--run", "0")
	require.NoError(t, err)
}
