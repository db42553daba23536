package record

import (
	"context"
	"fmt"
	"os"
	"time"

	"rent_sell_count/internal/config"
	"rent_sell_count/internal/retry"
	"rent_sell_count/internal/sheets"

	"github.com/rs/zerolog/log"
)

// DateLayout is how row dates are keyed in the sheet and the journal.
const DateLayout = "2006-01-02"

// Success is the outcome string of a fully recorded run. Anything else
// carries an "Error: " prefix and a description.
const Success = "Success!"

// Counts is one day's worth of listing counts in sheet column order.
type Counts struct {
	Rent        string
	Sell        string
	WanChaiRent string
	WanChaiSell string
}

// Sheet is the narrow spreadsheet surface the recorder needs.
type Sheet interface {
	ReadAll(ctx context.Context) ([][]interface{}, error)
	UpdateCell(ctx context.Context, row, col int, value string) error
}

type Recorder struct {
	cfg  *config.Config
	open func(ctx context.Context) (Sheet, error)
	now  func() time.Time
}

func New(cfg *config.Config) *Recorder {
	return &Recorder{
		cfg: cfg,
		open: func(ctx context.Context) (Sheet, error) {
			return openSpreadsheet(ctx, cfg)
		},
		now: time.Now,
	}
}

func openSpreadsheet(ctx context.Context, cfg *config.Config) (Sheet, error) {
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("credentials file %s unavailable: %w", cfg.CredentialsFile, err)
	}
	client, err := sheets.NewClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return client.Spreadsheet(cfg.SpreadsheetID, cfg.ReadRange), nil
}

// Record writes one dated row of counts, overwriting today's row when a run
// already happened. It returns the outcome string callers print plus the
// 1-indexed row that was targeted.
func (r *Recorder) Record(ctx context.Context, counts Counts) (string, int) {
	row, err := r.record(ctx, counts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to record counts")
		return "Error: " + err.Error(), row
	}
	return Success, row
}

func (r *Recorder) record(ctx context.Context, counts Counts) (int, error) {
	sheet, err := r.open(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := retry.WithRetry(ctx, r.cfg.Resilience.SheetRead, func(ctx context.Context) ([][]interface{}, error) {
		return sheet.ReadAll(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read recorded rows: %w", err)
	}

	today := r.now().In(r.cfg.Location).Format(DateLayout)
	target := targetRow(rows, today)

	log.Debug().
		Int("row_count", len(rows)).
		Int("target_row", target).
		Str("date", today).
		Msg("Resolved target row")

	cells := []string{today, counts.Rent, counts.Sell, counts.WanChaiRent, counts.WanChaiSell}
	for i, value := range cells {
		col := i + 1
		_, err := retry.WithRetry(ctx, r.cfg.Resilience.SheetWrite, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, sheet.UpdateCell(ctx, target, col, value)
		})
		if err != nil {
			return target, fmt.Errorf("failed to update row %d column %d: %w", target, col, err)
		}
	}

	log.Info().
		Int("row", target).
		Str("date", today).
		Msg("Recorded listing counts")

	return target, nil
}

// targetRow picks the row to write: the next empty row, or the last occupied
// row again when it already carries today's date.
func targetRow(rows [][]interface{}, today string) int {
	rowCount := len(rows)
	if rowCount == 0 {
		return 1
	}
	last := rows[rowCount-1]
	if len(last) > 0 && fmt.Sprintf("%v", last[0]) == today {
		return rowCount
	}
	return rowCount + 1
}
