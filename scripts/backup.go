package scripts

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/logger"
)

// BackupTimeFormat is the timestamp embedded in backup names.
// Microseconds keep collisions rare; a counter settles the rest.
const BackupTimeFormat = "20060102T150405.000000Z"

const (
	backupSuffix      = ".bak"
	maxBackupAttempts = 1000
)

// Backup is one saved prior version of a script
type Backup struct {
	ID        string    `json:"id"`
	Script    string    `json:"script"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int       `json:"seq"`
	Size      int64     `json:"size"`
}

// BackupDir returns where backups are written
func (r *Repository) BackupDir() string {
	if r.backupDir != "" {
		return r.backupDir
	}
	return r.root
}

// backup copies src into a new, never-overwritten backup file and syncs it
func (r *Repository) backup(name string, src io.Reader) (string, error) {
	dir := r.BackupDir()
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return "", errors.WrapWriteFailed(err, "failed to create backup directory")
	}

	stamp := r.now().UTC().Format(BackupTimeFormat)

	var (
		f    *os.File
		id   string
		err  error
		path string
	)
	for seq := 0; seq < maxBackupAttempts; seq++ {
		id = backupName(name, stamp, seq)
		path = filepath.Join(dir, id)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, am.DefaultFilePermissions)
		if err == nil || !os.IsExist(err) {
			break
		}
	}
	if err != nil {
		return "", errors.WrapWriteFailed(err, "failed to create backup file")
	}

	fail := func(err error, msg string) (string, error) {
		f.Close()
		os.Remove(path)
		return "", errors.WrapWriteFailed(err, msg)
	}

	if _, err := io.Copy(f, src); err != nil {
		return fail(err, "failed to copy script into backup")
	}
	if err := f.Sync(); err != nil {
		return fail(err, "failed to sync backup")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.WrapWriteFailed(err, "failed to close backup")
	}
	syncDir(dir)

	r.logger.Debugw("Backup written", logger.FieldScript, name, logger.FieldBackup, id)
	return id, nil
}

func backupName(name, stamp string, seq int) string {
	if seq == 0 {
		return name + "." + stamp + backupSuffix
	}
	return name + "." + stamp + "." + strconv.Itoa(seq) + backupSuffix
}

// parseBackupName reports whether id is a backup of name and decodes it
func parseBackupName(name, id string) (time.Time, int, bool) {
	rest, ok := strings.CutPrefix(id, name+".")
	if !ok {
		return time.Time{}, 0, false
	}
	rest, ok = strings.CutSuffix(rest, backupSuffix)
	if !ok || len(rest) < len(BackupTimeFormat) {
		return time.Time{}, 0, false
	}

	ts, err := time.Parse(BackupTimeFormat, rest[:len(BackupTimeFormat)])
	if err != nil {
		return time.Time{}, 0, false
	}

	tail := rest[len(BackupTimeFormat):]
	if tail == "" {
		return ts, 0, true
	}
	seqText, ok := strings.CutPrefix(tail, ".")
	if !ok {
		return time.Time{}, 0, false
	}
	seq, err := strconv.Atoi(seqText)
	if err != nil || seq < 1 {
		return time.Time{}, 0, false
	}
	return ts, seq, true
}

// Backups lists the backups of a script, oldest first
func (r *Repository) Backups(name string) ([]Backup, error) {
	if err := ValidateName(name, r.ext); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.BackupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list backups")
	}

	var backups []Backup
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, seq, ok := parseBackupName(name, e.Name())
		if !ok {
			continue
		}
		b := Backup{ID: e.Name(), Script: name, CreatedAt: ts, Seq: seq}
		if info, err := e.Info(); err == nil {
			b.Size = info.Size()
		}
		backups = append(backups, b)
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.Before(backups[j].CreatedAt)
		}
		return backups[i].Seq < backups[j].Seq
	})
	return backups, nil
}

// ReadBackup returns the content held by one backup of a script
func (r *Repository) ReadBackup(name, id string) (string, error) {
	if err := ValidateName(name, r.ext); err != nil {
		return "", err
	}
	if strings.ContainsAny(id, `/\`) {
		return "", errors.NewInvalidNameError("backup id %q contains a path separator", id)
	}
	if _, _, ok := parseBackupName(name, id); !ok {
		return "", errors.NewInvalidNameError("%q is not a backup of %s", id, name)
	}

	data, err := os.ReadFile(filepath.Join(r.BackupDir(), id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("backup %s", id)
		}
		return "", errors.Wrapf(err, "failed to read backup %s", id)
	}
	return string(data), nil
}
