package results

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/scrapstudio/db"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/export"
	studiotest "github.com/teranos/scrapstudio/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database := studiotest.CreateTestDB(t)
	require.NoError(t, db.Migrate(database, nil))
	return NewStore(database, nil)
}

var thaiSpec = RunSpec{
	JobID:      "job-1",
	Profession: "Associations",
	Country:    "Thaïlande",
	Language:   "fr",
	Keywords:   "francophone",
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)

	run, err := store.Run(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.Equal(t, "job-1", run.JobID)
	assert.Contains(t, run.Name, "Studio-Associations-Thaïlande-fr-")
	assert.Nil(t, run.FinishedAt)

	saved, err := store.SaveResults(ctx, runID, thaiSpec, []export.Record{
		{"name": "Alliance Française Bangkok", "website": "https://AF.example", "email": "info@af.example"},
		{"name": "Club des Expats", "phone": "+66 2 000 0000"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	run, err = store.FinishRun(ctx, runID, nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Emails)
	assert.Equal(t, 1, run.Phones)
	assert.NotNil(t, run.FinishedAt)
	assert.Empty(t, run.Error)
}

func TestFinishRun_RecordsError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)

	run, err := store.FinishRun(ctx, runID, errors.New("engine exited with status 2"))
	require.NoError(t, err)
	assert.Equal(t, RunError, run.Status)
	assert.Equal(t, "engine exited with status 2", run.Error)
}

func TestSaveResults_DeduplicatesWebsitePerCountry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)

	saved, err := store.SaveResults(ctx, runID, thaiSpec, []export.Record{
		{"name": "A", "website": "https://a.example"},
		{"name": "A again", "website": "HTTPS://A.EXAMPLE"},
		{"name": "A in France", "website": "https://a.example", "country": "France"},
		{"name": "no website"},
		{"name": "no website either"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, saved)

	// a later run hits the same website in the same country
	secondID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	saved, err = store.SaveResults(ctx, secondID, thaiSpec, []export.Record{{"website": " https://a.example "}})
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	_, err = store.SaveResults(ctx, runID, thaiSpec, []export.Record{
		{"name": "First", "telegram_url": "https://t.me/first"},
		{"name": "Second", "language": "en", "latitude": 13.75},
	})
	require.NoError(t, err)

	records, err := store.Records(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// newest first
	assert.Equal(t, "Second", records[0]["name"])
	assert.Equal(t, "en", records[0]["language"])
	assert.Equal(t, "13.75", records[0]["latitude"])
	assert.Equal(t, "First", records[1]["name"])
	assert.Equal(t, "fr", records[1]["language"])
	assert.Equal(t, "Thaïlande", records[1]["country"])
	assert.Equal(t, "Associations", records[1]["profession"])
	assert.Contains(t, records[1][export.RawJSONKey], "https://t.me/first")

	limited, err := store.Records(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecords_ExportThroughTemplate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	_, err = store.SaveResults(ctx, runID, thaiSpec, []export.Record{
		{"name": "Asso", "telegram_url": "https://t.me/asso"},
	})
	require.NoError(t, err)

	records, err := store.Records(ctx, 0)
	require.NoError(t, err)

	schema, err := export.Template("en")
	require.NoError(t, err)
	n, err := export.NewNormalizer(schema, export.WithRawFallback(export.RawJSONKey))
	require.NoError(t, err)

	row := n.Normalize(records)[0].Map()
	assert.Equal(t, "Asso", row["name"])
	assert.Equal(t, "https://t.me/asso", row["telegram_url"])
	assert.Equal(t, "Thaïlande", row["coverage_area"])
}

func TestRuns_FiltersByJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	other := thaiSpec
	other.JobID = "job-2"
	_, err = store.StartRun(ctx, other)
	require.NoError(t, err)

	runs, err := store.Runs(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "job-2", runs[0].JobID)

	all, err := store.Runs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.Run(ctx, 999)
	assert.True(t, errors.IsNotFound(err))
}

func TestFinishRun_CountsMessagingContacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	_, err = store.SaveResults(ctx, runID, thaiSpec, []export.Record{
		{"name": "A", "whatsapp": "+66 80 000 0000", "line_id": "@asso"},
		{"name": "B", "telegram": "@b", "wechat": "b_wx", "line_id": "  "},
	})
	require.NoError(t, err)

	run, err := store.FinishRun(ctx, runID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.WhatsApp)
	assert.Equal(t, 1, run.LineID)
	assert.Equal(t, 1, run.Telegram)
	assert.Equal(t, 1, run.WeChat)
	assert.GreaterOrEqual(t, run.RunMS, int64(0))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	lawyers := thaiSpec
	lawyers.Profession = "Avocats"
	first, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	second, err := store.StartRun(ctx, lawyers)
	require.NoError(t, err)
	third, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)

	runs, err := store.History(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int64{third, second, first}, []int64{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = store.History(ctx, HistoryFilter{Query: "avocats"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)

	runs, err = store.History(ctx, HistoryFilter{Limit: -5})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	firstID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	_, err = store.SaveResults(ctx, firstID, thaiSpec, []export.Record{{"name": "first"}})
	require.NoError(t, err)
	secondID, err := store.StartRun(ctx, thaiSpec)
	require.NoError(t, err)
	_, err = store.SaveResults(ctx, secondID, thaiSpec, []export.Record{{"name": "second a"}, {"name": "second b"}})
	require.NoError(t, err)

	records, err := store.RunRecords(ctx, secondID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second b", records[0]["name"])
	assert.Equal(t, "second a", records[1]["name"])

	_, err = store.RunRecords(ctx, 999)
	assert.True(t, errors.IsNotFound(err))
}

func TestSaveResults_RollsBackOnInsertFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	store := NewStore(mockDB, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = store.SaveResults(context.Background(), 1, thaiSpec, []export.Record{{"name": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert record 0")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRun_WrapsDriverError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WillReturnError(errors.New("database is locked"))

	_, err = NewStore(mockDB, nil).StartRun(context.Background(), thaiSpec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuns_QueryShape(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM runs WHERE job_id = ? ORDER BY id")).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	runs, err := NewStore(mockDB, nil).Runs(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "Thaï", truncate("Thaïlande", 4))
}
