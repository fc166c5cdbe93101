package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/export"
	"github.com/teranos/scrapstudio/logger"
)

// ExecRunner drives the scraping engine as a subprocess. The request is
// written to stdin as one JSON object; stdout must carry a JSON array of
// records, or an object with a "results" array. Stderr is engine chatter.
type ExecRunner struct {
	args    []string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewExecRunner parses a shell-quoted command line such as
// "python3 -m scrapstudio_engine". timeout bounds each invocation; zero
// means no bound.
func NewExecRunner(command string, timeout time.Duration, log *zap.SugaredLogger) (*ExecRunner, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid engine command %q", command)
	}
	if len(args) == 0 {
		return nil, errors.WithHint(errors.New("engine command is empty"),
			"set engine.command in am.toml")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ExecRunner{args: args, timeout: timeout, logger: log}, nil
}

// Scrape runs the engine once for req
func (r *ExecRunner) Scrape(ctx context.Context, req Request) ([]export.Record, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode engine request")
	}

	cmd := exec.CommandContext(ctx, r.args[0], r.args[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// engine grandchildren may hold the pipes open after a kill
	cmd.WaitDelay = 2 * time.Second

	log := logger.FromContext(ctx, r.logger)
	start := time.Now()
	runErr := cmd.Run()

	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		if line != "" {
			log.Debugw("engine: "+line)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "engine %s interrupted", r.args[0])
		}
		e := errors.Newf("engine %s failed: %v: %s", r.args[0], runErr, lastLine(stderr.String()))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			e = errors.WithDetail(e, s)
		}
		return nil, e
	}

	records, err := decodeRecords(stdout.Bytes())
	if err != nil {
		return nil, errors.WithDetail(err, truncateOutput(stdout.String()))
	}

	log.Debugw("Engine invocation finished",
		logger.FieldCount, len(records),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return records, nil
}

func decodeRecords(out []byte) ([]export.Record, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(out))
	dec.UseNumber()

	var records []export.Record
	switch out[0] {
	case '[':
		if err := dec.Decode(&records); err != nil {
			return nil, errors.Wrap(err, "failed to parse engine output")
		}
	case '{':
		var wrapped struct {
			Results []export.Record `json:"results"`
		}
		if err := dec.Decode(&wrapped); err != nil {
			return nil, errors.Wrap(err, "failed to parse engine output")
		}
		records = wrapped.Results
	default:
		return nil, errors.New("engine output is not JSON")
	}
	return records, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func truncateOutput(s string) string {
	const max = 2000
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
