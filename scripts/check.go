package scripts

import (
	"context"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/scrapstudio/errors"
)

// FilePlaceholder is replaced by the candidate file path in a check command
const FilePlaceholder = "{file}"

// Checker validates candidate script content written at path
type Checker interface {
	Check(ctx context.Context, path string) error
}

// CommandChecker runs an external command such as
// "python3 -m py_compile {file}" and treats a non-zero exit as a syntax error.
type CommandChecker struct {
	args []string
}

// NewCommandChecker parses a shell-quoted command line. When it has no
// {file} placeholder the path is appended as the last argument.
func NewCommandChecker(command string) (*CommandChecker, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid check command %q", command)
	}
	if len(args) == 0 {
		return nil, errors.New("check command is empty")
	}

	hasPlaceholder := false
	for _, a := range args {
		if strings.Contains(a, FilePlaceholder) {
			hasPlaceholder = true
			break
		}
	}
	if !hasPlaceholder {
		args = append(args, FilePlaceholder)
	}
	return &CommandChecker{args: args}, nil
}

// Args returns the command with path substituted
func (c *CommandChecker) Args(path string) []string {
	out := make([]string, len(c.args))
	for i, a := range c.args {
		out[i] = strings.ReplaceAll(a, FilePlaceholder, path)
	}
	return out
}

// Check runs the command against path
func (c *CommandChecker) Check(ctx context.Context, path string) error {
	args := c.Args(path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return errors.Wrapf(err, "failed to run check command %s", args[0])
	}

	detail := strings.TrimSpace(string(out))
	summary := detail
	if i := strings.LastIndexByte(summary, '\n'); i >= 0 {
		summary = strings.TrimSpace(summary[i+1:])
	}
	if summary == "" {
		summary = exitErr.Error()
	}

	e := errors.Mark(errors.Newf("syntax check failed: %s", summary), errors.ErrSyntax)
	if detail != "" {
		e = errors.WithDetail(e, detail)
	}
	return e
}
