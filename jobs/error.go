package jobs

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teranos/scrapstudio/db"
	"github.com/teranos/scrapstudio/errors"
)

// MaxErrorLength caps the error string recorded on a failed job
const MaxErrorLength = 300

// ErrorCode classifies why a job failed
type ErrorCode string

const (
	ErrorCodeTimeout  ErrorCode = "timeout"
	ErrorCodeNetwork  ErrorCode = "network_error"
	ErrorCodeDatabase ErrorCode = "database_error"
	ErrorCodeShutdown ErrorCode = "shutdown"
	ErrorCodePanic    ErrorCode = "panic"
	ErrorCodeEngine   ErrorCode = "engine_error"
)

// errPanic marks errors built from a recovered engine panic
var errPanic = errors.New("engine panicked")

// ClassifyError maps a job failure to an ErrorCode from its chain and message
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if errors.Is(err, errPanic) {
		return ErrorCodePanic
	}
	// a closed database means the process is going away under the job
	if errors.Is(err, context.Canceled) || db.IsDatabaseClosed(err) {
		return ErrorCodeShutdown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout"):
		return ErrorCodeTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") || strings.Contains(msg, "dns"):
		return ErrorCodeNetwork
	case strings.Contains(msg, "database") || strings.Contains(msg, "sqlite"):
		return ErrorCodeDatabase
	default:
		return ErrorCodeEngine
	}
}

// SanitizeError renders err for operators: one line, no control characters,
// at most MaxErrorLength runes. It is never empty for a non-nil error.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	space := false
	for _, r := range err.Error() {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}

	msg := b.String()
	if msg == "" {
		return "engine failed without a message"
	}
	if utf8.RuneCountInString(msg) > MaxErrorLength {
		msg = string([]rune(msg)[:MaxErrorLength-1]) + "…"
	}
	return msg
}
