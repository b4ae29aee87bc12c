package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fedrates-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extract_records (
	survey_date TEXT NOT NULL,
	panel       TEXT NOT NULL,
	concept     TEXT NOT NULL,
	pctl25      REAL,
	pctl50      REAL,
	pctl75      REAL,
	source      TEXT NOT NULL,
	file_url    TEXT NOT NULL DEFAULT '',
	local_path  TEXT NOT NULL DEFAULT '',
	pdf_page    INTEGER,
	notes       TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (survey_date, panel, source)
);

CREATE TABLE IF NOT EXISTS documents (
	url        TEXT PRIMARY KEY,
	local_path TEXT NOT NULL,
	etag       TEXT NOT NULL DEFAULT '',
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'running',
	records_written INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_extract_records_source ON extract_records(source);
CREATE INDEX IF NOT EXISTS idx_extract_records_date ON extract_records(survey_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const upsertRecordSQL = `
INSERT INTO extract_records
	(survey_date, panel, concept, pctl25, pctl50, pctl75, source, file_url, local_path, pdf_page, notes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (survey_date, panel, source) DO UPDATE SET
	concept    = excluded.concept,
	pctl25     = excluded.pctl25,
	pctl50     = excluded.pctl50,
	pctl75     = excluded.pctl75,
	file_url   = excluded.file_url,
	local_path = excluded.local_path,
	pdf_page   = excluded.pdf_page,
	notes      = excluded.notes,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertRecords(ctx context.Context, recs []model.PercentileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range recs {
		var page sql.NullInt64
		if r.PDFPage != nil {
			page = sql.NullInt64{Int64: int64(*r.PDFPage), Valid: true}
		}
		_, err := tx.ExecContext(ctx, upsertRecordSQL,
			r.SurveyDate.Format("2006-01-02"),
			string(r.Panel),
			r.Concept,
			nullFloat(r.Pctl25),
			nullFloat(r.Pctl50),
			nullFloat(r.Pctl75),
			string(r.Source),
			r.FileURL,
			r.LocalPath,
			page,
			r.Notes,
			now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert record %s/%s/%s", r.DateKey(), r.Panel, r.Source)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

func (s *SQLiteStore) RecordsBySource(ctx context.Context, sources ...model.Source) ([]model.PercentileRecord, error) {
	query := `SELECT survey_date, panel, concept, pctl25, pctl50, pctl75, source, file_url, local_path, pdf_page, notes
		FROM extract_records`
	var args []any
	if len(sources) > 0 {
		placeholders := make([]string, len(sources))
		for i, src := range sources {
			placeholders[i] = "?"
			args = append(args, string(src))
		}
		query += ` WHERE source IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY survey_date, panel, source`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PercentileRecord
	for rows.Next() {
		var (
			r             model.PercentileRecord
			dateStr       string
			p25, p50, p75 sql.NullFloat64
			panel, source string
			page          sql.NullInt64
		)
		if err := rows.Scan(&dateStr, &panel, &r.Concept, &p25, &p50, &p75, &source, &r.FileURL, &r.LocalPath, &page, &r.Notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		r.SurveyDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: bad survey_date %q", dateStr)
		}
		r.Panel = model.Panel(panel)
		r.Source = model.Source(source)
		if p25.Valid {
			r.Pctl25 = model.Float(p25.Float64)
		}
		if p50.Valid {
			r.Pctl50 = model.Float(p50.Float64)
		}
		if p75.Valid {
			r.Pctl75 = model.Float(p75.Float64)
		}
		if page.Valid {
			r.PDFPage = model.Int(int(page.Int64))
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) DatesWithSource(ctx context.Context, source model.Source) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT substr(survey_date, 1, 7) FROM extract_records
		 WHERE source = ? AND (pctl25 IS NOT NULL OR pctl50 IS NOT NULL OR pctl75 IS NOT NULL)`,
		string(source),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query dates with source")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]bool)
	for rows.Next() {
		var month string
		if err := rows.Scan(&month); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan month")
		}
		out[month] = true
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate months")
}

func (s *SQLiteStore) CountsBySource(ctx context.Context) (map[model.Source]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM extract_records GROUP BY source`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query counts")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[model.Source]int)
	for rows.Next() {
		var (
			src string
			n   int
		)
		if err := rows.Scan(&src, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		out[model.Source(src)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, url, localPath, etag string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (url, local_path, etag, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET local_path = excluded.local_path, etag = excluded.etag, fetched_at = excluded.fetched_at`,
		url, localPath, etag, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save document %s", url)
}

func (s *SQLiteStore) DocumentETag(ctx context.Context, url string) (string, error) {
	var etag string
	err := s.db.QueryRowContext(ctx,
		`SELECT etag FROM documents WHERE url = ?`, url,
	).Scan(&etag)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: document etag %s", url)
	}
	return etag, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, 'running', ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status string, recordsWritten int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, records_written = ?, finished_at = ? WHERE id = ?`,
		status, recordsWritten, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
