package results

import (
	"context"
	"database/sql"

	"github.com/teranos/scrapstudio/errors"
)

// Built-in filter values offered when the catalog tables are empty or unreadable
var (
	DefaultProfessions = []string{
		"Associations", "YouTubeurs", "Avocats", "Traducteurs",
		"Interprètes", "Digital Nomads", "Restaurateurs", "Hôteliers",
	}
	DefaultCountries = []string{
		"Thaïlande", "France", "Expatriés Thaïlande", "Digital Nomads Asie",
		"Voyageurs Asie du Sud-Est", "Royaume-Uni", "États-Unis", "Allemagne",
	}
	DefaultLanguages = []string{"fr", "en", "th", "de", "es", "it", "ru", "zh", "ja"}

	// WildcardLanguages replaces an "all languages" request when the
	// languages table cannot be read
	WildcardLanguages = []string{"th", "en", "fr"}
)

// Filters are the choices an operator can launch a job with
type Filters struct {
	Professions []string `json:"types"`
	Countries   []string `json:"countries"`
	Languages   []string `json:"languages"`
}

// Filters reads the catalog, substituting the built-in list for any table
// that is empty or cannot be read. It never fails.
func (s *Store) Filters(ctx context.Context) Filters {
	return Filters{
		Professions: s.listOr(ctx, "SELECT DISTINCT name FROM professions ORDER BY name", DefaultProfessions),
		Countries:   s.listOr(ctx, "SELECT DISTINCT name FROM countries ORDER BY name", DefaultCountries),
		Languages:   s.listOr(ctx, "SELECT DISTINCT code FROM languages ORDER BY code", DefaultLanguages),
	}
}

// AllLanguages expands an "all languages" request from the catalog
func (s *Store) AllLanguages(ctx context.Context) []string {
	return s.listOr(ctx, "SELECT code FROM languages ORDER BY code", WildcardLanguages)
}

func (s *Store) listOr(ctx context.Context, query string, fallback []string) []string {
	values, err := s.list(ctx, query)
	if err != nil {
		s.logger.Warnw("Catalog query failed, using fallback", "query", query, "error", err)
	}
	if err != nil || len(values) == 0 {
		return append([]string(nil), fallback...)
	}
	return values
}

func (s *Store) list(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid && v.String != "" {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}

// SeedCatalog inserts filter values, ignoring ones already present
func (s *Store) SeedCatalog(ctx context.Context, f Filters) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin catalog transaction")
	}
	defer tx.Rollback()

	inserts := []struct {
		query  string
		values []string
	}{
		{"INSERT OR IGNORE INTO professions (name) VALUES (?)", f.Professions},
		{"INSERT OR IGNORE INTO countries (name) VALUES (?)", f.Countries},
		{"INSERT OR IGNORE INTO languages (code) VALUES (?)", f.Languages},
	}
	for _, ins := range inserts {
		for _, v := range ins.values {
			if _, err := tx.ExecContext(ctx, ins.query, v); err != nil {
				return errors.Wrapf(err, "failed to seed %q", v)
			}
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit catalog")
}
