package scripts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/scrapstudio/errors"
)

func TestVCSStatus(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "scrapers")
	require.NoError(t, os.Mkdir(root, 0755))

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	scripts := New(root)
	writeScript(t, root, "a.py", "v0")

	state, err := scripts.VCSStatus("a.py")
	require.NoError(t, err)
	assert.Equal(t, VCSUntracked, state)

	_, err = wt.Add("scrapers/a.py")
	require.NoError(t, err)
	_, err = wt.Commit("add scraper", &git.CommitOptions{
		Author: &object.Signature{Name: "ops", Email: "ops@example.org", When: time.Now()},
	})
	require.NoError(t, err)

	state, err = scripts.VCSStatus("a.py")
	require.NoError(t, err)
	assert.Equal(t, VCSClean, state)

	writeScript(t, root, "a.py", "v1")
	state, err = scripts.VCSStatus("a.py")
	require.NoError(t, err)
	assert.Equal(t, VCSModified, state)

	_, err = scripts.VCSStatus("missing.py")
	assert.True(t, errors.IsNotFound(err))
}

func TestVCSStatus_NoRepository(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "a.py", "v0")

	state, err := New(root).VCSStatus("a.py")
	require.NoError(t, err)
	assert.Equal(t, VCSNone, state)
}
