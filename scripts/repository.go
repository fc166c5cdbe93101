// Package scripts manages the directory of scraper scripts operators edit.
//
// A save never leaves a half-written script behind: the prior content is
// copied to a uniquely named backup and synced to disk first, then the new
// content, already written and synced to a temporary sibling file, is
// renamed over the live file. Readers see either the old or the new bytes.
//
// Concurrent saves of different scripts are independent. Concurrent saves of
// the same script are not ordered; the last rename wins and every save keeps
// its own backup.
package scripts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/logger"
)

// Repository is CRUD over one script root directory
type Repository struct {
	root      string
	backupDir string
	ext       string
	checker   Checker
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// Option configures a Repository
type Option func(*Repository)

// WithBackupDir places backups in dir instead of alongside the scripts
func WithBackupDir(dir string) Option {
	return func(r *Repository) { r.backupDir = dir }
}

// WithExtension sets the recognized script extension (default ".py")
func WithExtension(ext string) Option {
	return func(r *Repository) { r.ext = ext }
}

// WithChecker runs c on the candidate content before every save
func WithChecker(c Checker) Option {
	return func(r *Repository) { r.checker = c }
}

// WithLogger sets the repository logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Repository) { r.logger = l }
}

// New creates a repository rooted at root
func New(root string, opts ...Option) *Repository {
	r := &Repository{
		root:   root,
		ext:    ".py",
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig builds a repository from the scripts section of am.toml
func NewFromConfig(cfg am.ScriptsConfig, log *zap.SugaredLogger) (*Repository, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.WithHint(errors.New("scripts.root is not set"),
			"set scripts.root in am.toml or SCRAPMASTER_SCRAPERS")
	}

	opts := []Option{WithBackupDir(cfg.BackupDir)}
	if cfg.Extension != "" {
		opts = append(opts, WithExtension(cfg.Extension))
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	if cfg.CheckCommand != "" {
		checker, err := NewCommandChecker(cfg.CheckCommand)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithChecker(checker))
	}
	return New(cfg.Root, opts...), nil
}

// Root returns the script root directory
func (r *Repository) Root() string {
	return r.root
}

// Extension returns the recognized script extension
func (r *Repository) Extension() string {
	return r.ext
}

// List returns the scripts directly under the root, sorted by name.
// Names starting with "__" are package internals and are skipped.
func (r *Repository) List() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(errors.NewNotFoundError("script root %s", r.root),
				"create the directory or point scripts.root at an existing one")
		}
		return nil, errors.Wrapf(err, "failed to list %s", r.root)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "__") {
			continue
		}
		if ValidateName(name, r.ext) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of a script
func (r *Repository) Read(name string) (string, error) {
	if err := ValidateName(name, r.ext); err != nil {
		return "", err
	}

	data, err := os.ReadFile(r.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("script %s", name)
		}
		return "", errors.Wrapf(err, "failed to read script %s", name)
	}
	return string(data), nil
}

// Save replaces the content of a script and returns the id of the backup
// holding its previous content. The id is empty when the script did not
// exist before. Identical content still produces a new backup.
func (r *Repository) Save(ctx context.Context, name, content string) (string, error) {
	if err := ValidateName(name, r.ext); err != nil {
		return "", err
	}

	log := logger.FromContext(ctx, r.logger).With(logger.FieldScript, name)
	target := r.path(name)

	tmp, err := r.writeTemp(name, content)
	if err != nil {
		return "", err
	}
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmp)
		}
	}()

	if r.checker != nil {
		if err := r.checker.Check(ctx, tmp); err != nil {
			log.Infow("Script rejected by syntax check", logger.FieldError, err)
			return "", err
		}
	}

	// The live file stays open until the rename so the backup and the
	// replace act on the same handle.
	live, err := os.Open(target)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.WrapWriteFailed(err, "failed to open live script")
	}

	var backupID string
	if live != nil {
		defer live.Close()

		copyMode(log, tmp, live)

		backupID, err = r.backup(name, live)
		if err != nil {
			log.Errorw("Backup failed, live script left untouched", logger.FieldError, err)
			return "", err
		}
	}

	if err := os.Rename(tmp, target); err != nil {
		return backupID, errors.WrapWriteFailed(err, "failed to replace live script")
	}
	renamed = true
	syncDir(r.root)

	log.Infow("Script saved", logger.FieldBackup, backupID, logger.FieldCount, len(content))
	return backupID, nil
}

// copyMode gives the replacement the live script's permissions. On failure
// the replacement keeps DefaultFilePermissions and the save goes on.
func copyMode(log *zap.SugaredLogger, dst string, live *os.File) {
	info, err := live.Stat()
	if err == nil {
		err = os.Chmod(dst, info.Mode().Perm())
	}
	if err != nil {
		log.Debugw("Could not carry file mode over to the new script",
			logger.FieldPath, dst, logger.FieldError, err)
	}
}

// writeTemp writes content to a synced temporary file next to the live one.
// The rename that follows stays on one filesystem.
func (r *Repository) writeTemp(name, content string) (string, error) {
	f, err := os.CreateTemp(r.root, "."+name+".*.tmp")
	if err != nil {
		return "", errors.WrapWriteFailed(err, "failed to create temporary file")
	}

	path := f.Name()
	fail := func(err error, msg string) (string, error) {
		f.Close()
		os.Remove(path)
		return "", errors.WrapWriteFailed(err, msg)
	}

	if err := f.Chmod(am.DefaultFilePermissions); err != nil {
		return fail(err, "failed to set permissions on temporary file")
	}
	if _, err := io.WriteString(f, content); err != nil {
		return fail(err, "failed to write temporary file")
	}
	if err := f.Sync(); err != nil {
		return fail(err, "failed to sync temporary file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.WrapWriteFailed(err, "failed to close temporary file")
	}
	return path, nil
}

func (r *Repository) path(name string) string {
	return filepath.Join(r.root, name)
}

// syncDir flushes directory entries so a rename survives a crash.
// Not every platform supports it; failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
