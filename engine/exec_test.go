package engine

import (
	"context"
	"encoding/json"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/scrapstudio/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_EchoesRequest(t *testing.T) {
	requireShell(t)
	r, err := NewExecRunner(`sh -c 'read -r req; printf "[{\"request\": %s, \"quality_score\": 0.8}]" "$req"'`, 0, nil)
	require.NoError(t, err)

	records, err := r.Scrape(context.Background(), Request{"country": "France", "profession": "Avocats"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, json.Number("0.8"), records[0]["quality_score"])
	assert.Equal(t, map[string]any{"country": "France", "profession": "Avocats"}, records[0]["request"])
}

func TestExecRunner_WrappedResults(t *testing.T) {
	requireShell(t)
	r, err := NewExecRunner(`sh -c 'cat >/dev/null; echo "{\"results\": [{\"name\": \"A\"}, {\"name\": \"B\"}]}"'`, 0, nil)
	require.NoError(t, err)

	records, err := r.Scrape(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[1]["name"])
}

func TestExecRunner_EmptyOutput(t *testing.T) {
	requireShell(t)
	r, err := NewExecRunner(`sh -c 'cat >/dev/null'`, 0, nil)
	require.NoError(t, err)

	records, err := r.Scrape(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecRunner_Failure(t *testing.T) {
	requireShell(t)
	r, err := NewExecRunner(`sh -c 'cat >/dev/null; echo "loading" >&2; echo "ModuleNotFoundError: playwright" >&2; exit 3'`, 0, nil)
	require.NoError(t, err)

	_, err = r.Scrape(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ModuleNotFoundError: playwright")
	assert.Contains(t, errors.FlattenDetails(err), "loading")
}

func TestExecRunner_BadOutput(t *testing.T) {
	requireShell(t)
	r, err := NewExecRunner(`sh -c 'cat >/dev/null; echo "scraping done"'`, 0, nil)
	require.NoError(t, err)

	_, err = r.Scrape(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not JSON")
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	r, err := NewExecRunner(`sh -c 'exec sleep 5'`, 50*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Scrape(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestNewExecRunner_Rejects(t *testing.T) {
	_, err := NewExecRunner("", 0, nil)
	assert.Error(t, err)
	_, err = NewExecRunner(`python3 "unterminated`, 0, nil)
	assert.Error(t, err)
}
