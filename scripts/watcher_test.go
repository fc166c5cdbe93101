package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsScriptSaves(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "a.py", "v0")
	repo := New(root)

	changes := make(chan Change, 16)
	w, err := NewWatcher(repo, func(c Change) { changes <- c })
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	w.Start()
	defer w.Stop()

	// noise that must not be reported
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py.20260101T000000.000000Z.bak"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "__init__.py"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))

	_, err = repo.Save(context.Background(), "a.py", "v1")
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, "a.py", c.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case c := <-changes:
		assert.Equal(t, "a.py", c.Name, "unexpected extra change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{repo: New(t.TempDir())}
	assert.True(t, w.relevant("a.py"))
	assert.False(t, w.relevant(".a.py.123.tmp"))
	assert.False(t, w.relevant("a.py.20260101T000000.000000Z.bak"))
	assert.False(t, w.relevant("__init__.py"))
	assert.False(t, w.relevant("notes.txt"))
}
