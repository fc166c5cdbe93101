// Package results persists what the scraping engine returns: one run row per
// engine invocation and the result records it produced. It also serves the
// records back to the export pipeline and the filter catalog to operators.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/export"
)

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunError     = "error"
)

const (
	maxNameLen        = 500
	maxDescriptionLen = 2000
	maxRunErrorLen    = 300
)

// resultColumns are the typed columns copied out of an engine record.
// Everything else survives only inside raw_json.
var resultColumns = []string{
	"name", "category", "description", "website", "email", "phone", "city",
	"province", "address", "country", "language", "source_url", "facebook",
	"instagram", "linkedin", "line_id", "whatsapp", "telegram", "wechat",
	"other_contact", "contact_name", "latitude", "longitude",
}

// Store is the SQLite-backed result storage
type Store struct {
	db     *sql.DB
	sq     sq.StatementBuilderType
	logger *zap.SugaredLogger
}

// NewStore wraps a migrated database
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, sq: sq.StatementBuilder, logger: logger}
}

// RunSpec identifies one engine invocation
type RunSpec struct {
	JobID      string
	Profession string
	Country    string
	Language   string
	Keywords   string
}

// Run is a persisted engine invocation
type Run struct {
	ID         int64
	JobID      string
	Name       string
	Profession string
	Country    string
	Language   string
	Keywords   string
	Status     string
	Total      int
	Emails     int
	Phones     int
	WhatsApp   int
	LineID     int
	Telegram   int
	WeChat     int
	RunMS      int64 // 0 while running
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// StartRun records a run in the running state and returns its id
func (s *Store) StartRun(ctx context.Context, spec RunSpec) (int64, error) {
	name := fmt.Sprintf("Studio-%s-%s-%s-%s",
		spec.Profession, spec.Country, spec.Language, time.Now().UTC().Format("150405"))

	res, err := s.sq.Insert("runs").
		Columns("job_id", "name", "profession", "country", "language", "keywords", "status").
		Values(spec.JobID, name, spec.Profession, spec.Country, spec.Language, spec.Keywords, RunRunning).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create run")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read run id")
	}
	return id, nil
}

// SaveResults stores records for a run inside one transaction. A record whose
// website (case-insensitive) is already stored for the same country is
// skipped. Returns how many records were inserted.
func (s *Store) SaveResults(ctx context.Context, runID int64, spec RunSpec, records []export.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin results transaction")
	}
	defer tx.Rollback()

	columns := make([]string, 0, len(resultColumns)+2)
	columns = append(columns, "run_id")
	columns = append(columns, resultColumns...)
	columns = append(columns, "raw_json")

	saved := 0
	for i, rec := range records {
		country := valueOr(rec, "country", spec.Country)

		if website := strings.TrimSpace(export.Coerce(rec["website"])); website != "" {
			var dup int
			err := tx.QueryRowContext(ctx, `
				SELECT 1 FROM results
				WHERE lower(coalesce(website, '')) = lower(?) AND coalesce(country, '') = coalesce(?, '')
				LIMIT 1`, website, country).Scan(&dup)
			if err == nil {
				continue
			}
			if err != sql.ErrNoRows {
				return 0, errors.Wrapf(err, "failed to check duplicate for record %d", i)
			}
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to encode record %d", i)
		}

		args := make([]any, 0, len(resultColumns)+2)
		args = append(args, runID)
		for _, col := range resultColumns {
			switch col {
			case "country":
				args = append(args, country)
			case "language":
				args = append(args, valueOr(rec, "language", spec.Language))
			case "name":
				args = append(args, truncate(export.Coerce(rec[col]), maxNameLen))
			case "description":
				args = append(args, truncate(export.Coerce(rec[col]), maxDescriptionLen))
			default:
				args = append(args, nullable(rec[col]))
			}
		}
		args = append(args, string(raw))

		insert := s.sq.Insert("results").Columns(columns...).Values(args...).RunWith(tx)
		if _, err := insert.ExecContext(ctx); err != nil {
			return 0, errors.Wrapf(err, "failed to insert record %d", i)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit results")
	}
	return saved, nil
}

// FinishRun computes the run's counters and marks it completed, or error when
// runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, runID int64, runErr error) (Run, error) {
	var total, emails, phones, whatsapp, lineID, telegram, wechat int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN trim(ifnull(email, '')) <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN trim(ifnull(phone, '')) <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN trim(ifnull(whatsapp, '')) <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN trim(ifnull(line_id, '')) <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN trim(ifnull(telegram, '')) <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN trim(ifnull(wechat, '')) <> '' THEN 1 ELSE 0 END), 0)
		FROM results WHERE run_id = ?`, runID).Scan(&total, &emails, &phones, &whatsapp, &lineID, &telegram, &wechat)
	if err != nil {
		return Run{}, errors.Wrapf(err, "failed to count results of run %d", runID)
	}

	status, errText := RunCompleted, sql.NullString{}
	if runErr != nil {
		status = RunError
		errText = sql.NullString{String: truncate(runErr.Error(), maxRunErrorLen), Valid: true}
	}

	_, err = s.sq.Update("runs").
		SetMap(map[string]any{
			"status":         status,
			"total_results":  total,
			"emails_count":   emails,
			"phones_count":   phones,
			"whatsapp_count": whatsapp,
			"line_id_count":  lineID,
			"telegram_count": telegram,
			"wechat_count":   wechat,
			"error":          errText,
			"finished_at":    sq.Expr("CURRENT_TIMESTAMP"),
			"run_ms":         sq.Expr("CAST((julianday('now') - julianday(created_at)) * 86400000 AS INTEGER)"),
		}).
		Where(sq.Eq{"id": runID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return Run{}, errors.Wrapf(err, "failed to finish run %d", runID)
	}

	return s.Run(ctx, runID)
}

func (s *Store) selectRuns() sq.SelectBuilder {
	return s.sq.Select("id", "job_id", "name", "profession", "country", "language", "keywords", "status",
		"total_results", "emails_count", "phones_count", "whatsapp_count", "line_id_count",
		"telegram_count", "wechat_count", "run_ms", "error", "created_at", "finished_at").
		From("runs")
}

// Run loads one run
func (s *Store) Run(ctx context.Context, runID int64) (Run, error) {
	row := s.selectRuns().Where(sq.Eq{"id": runID}).RunWith(s.db).QueryRowContext(ctx)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, errors.NewNotFoundError("run %d", runID)
	}
	return r, err
}

// Runs lists the runs of a job, oldest first. An empty jobID lists all runs.
func (s *Store) Runs(ctx context.Context, jobID string) ([]Run, error) {
	query := s.selectRuns().OrderBy("id")
	if jobID != "" {
		query = query.Where(sq.Eq{"job_id": jobID})
	}
	return s.listRuns(ctx, query)
}

// History bounds
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// HistoryFilter selects runs for History
type HistoryFilter struct {
	Query string // substring of the run name, case-insensitive
	Limit int    // clamped to [1, MaxHistoryLimit]; 0 means DefaultHistoryLimit
}

// History lists runs across all jobs, newest first
func (s *Store) History(ctx context.Context, f HistoryFilter) ([]Run, error) {
	limit := f.Limit
	switch {
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit < 1:
		limit = 1
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	query := s.selectRuns().OrderBy("created_at DESC", "id DESC").Limit(uint64(limit))
	if q := strings.TrimSpace(f.Query); q != "" {
		query = query.Where(sq.Like{"name": "%" + q + "%"})
	}
	return s.listRuns(ctx, query)
}

func (s *Store) listRuns(ctx context.Context, query sq.SelectBuilder) ([]Run, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var runErr sql.NullString
	var runMS sql.NullInt64
	var finished sql.NullTime
	err := sc.Scan(&r.ID, &r.JobID, &r.Name, &r.Profession, &r.Country, &r.Language, &r.Keywords,
		&r.Status, &r.Total, &r.Emails, &r.Phones, &r.WhatsApp, &r.LineID, &r.Telegram, &r.WeChat,
		&runMS, &runErr, &r.CreatedAt, &finished)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "failed to scan run")
	}
	r.Error = runErr.String
	r.RunMS = runMS.Int64
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// Records returns stored results newest first, joined with their run's name
// and profession, as generic records for export. limit <= 0 means no limit.
func (s *Store) Records(ctx context.Context, limit int) ([]export.Record, error) {
	query := s.selectRecords()
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.records(ctx, query)
}

// RunRecords returns the results of one run, newest first
func (s *Store) RunRecords(ctx context.Context, runID int64) ([]export.Record, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}
	return s.records(ctx, s.selectRecords().Where(sq.Eq{"r.run_id": runID}))
}

func (s *Store) selectRecords() sq.SelectBuilder {
	return s.sq.Select("r.*", "p.name AS run_name", "p.profession AS profession").
		From("results r").
		LeftJoin("runs p ON r.run_id = p.id").
		OrderBy("r.id DESC")
}

func (s *Store) records(ctx context.Context, query sq.SelectBuilder) ([]export.Record, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query results")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read result columns")
	}

	var records []export.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "failed to scan result")
		}

		rec := make(export.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to iterate results")
}

func valueOr(rec export.Record, key, fallback string) string {
	if v := strings.TrimSpace(export.Coerce(rec[key])); v != "" {
		return v
	}
	return fallback
}

func nullable(v any) any {
	s := export.Coerce(v)
	if v == nil || s == "" {
		return nil
	}
	return s
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
