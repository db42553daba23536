package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Record is one completed run as remembered locally.
type Record struct {
	Date        string
	Rent        string
	Sell        string
	WanChaiRent string
	WanChaiSell string
	SheetRow    int
	Result      string
	RecordedAt  time.Time
}

// Journal keeps a local sqlite copy of every run so history survives
// spreadsheet edits and can be inspected offline.
type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		log.Warn().Err(err).Msg("Failed to set WAL mode")
	}

	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_date TEXT NOT NULL,
    rent TEXT,
    sell TEXT,
    wan_chai_rent TEXT,
    wan_chai_sell TEXT,
    sheet_row INTEGER,
    result TEXT,
    recorded_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Append(ctx context.Context, rec Record) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO runs (run_date, rent, sell, wan_chai_rent, wan_chai_sell, sheet_row, result, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Date, rec.Rent, rec.Sell, rec.WanChaiRent, rec.WanChaiSell,
		rec.SheetRow, rec.Result, rec.RecordedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append run: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest runs, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT run_date, rent, sell, wan_chai_rent, wan_chai_sell, sheet_row, result, recorded_at
FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var recordedAt string
		if err := rows.Scan(&rec.Date, &rec.Rent, &rec.Sell, &rec.WanChaiRent, &rec.WanChaiSell,
			&rec.SheetRow, &rec.Result, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			rec.RecordedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
