package scripts

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/teranos/scrapstudio/errors"
)

// VCSState is how git sees a script
type VCSState string

const (
	VCSNone      VCSState = "none" // root is not inside a git work tree
	VCSClean     VCSState = "clean"
	VCSModified  VCSState = "modified"
	VCSUntracked VCSState = "untracked"
)

// VCSStatus reports the git state of a script. Saves leave committing to
// the operator; this tells them what a push would carry.
func (r *Repository) VCSStatus(name string) (VCSState, error) {
	if err := ValidateName(name, r.ext); err != nil {
		return "", err
	}
	if _, err := os.Stat(r.path(name)); err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("script %s", name)
		}
		return "", errors.Wrapf(err, "failed to stat script %s", name)
	}

	repo, err := git.PlainOpenWithOptions(r.root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return VCSNone, nil
		}
		return "", errors.Wrap(err, "failed to open git repository")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.Wrap(err, "failed to open git worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return "", errors.Wrap(err, "failed to read git status")
	}

	rel, err := worktreePath(wt.Filesystem.Root(), r.path(name))
	if err != nil {
		return "", err
	}

	fs, ok := status[rel]
	switch {
	case !ok:
		return VCSClean, nil
	case fs.Worktree == git.Untracked:
		return VCSUntracked, nil
	case fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified:
		return VCSModified, nil
	default:
		return VCSClean, nil
	}
}

// worktreePath turns path into the slash-separated key git status uses
func worktreePath(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve worktree root")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve script path")
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", errors.Wrap(err, "script is outside the git worktree")
	}
	return filepath.ToSlash(rel), nil
}
