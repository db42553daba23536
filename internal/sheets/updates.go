package sheets

import (
	"context"
	"fmt"
)

// UpdateCell writes a single value at a 1-indexed row and column of the first
// worksheet, the same cell addressing the count rows use.
func (c *Client) UpdateCell(ctx context.Context, spreadsheetID string, row, col int, value interface{}) error {
	cellRange := fmt.Sprintf("%s%d", columnLetter(col), row)
	return c.UpdateRange(ctx, spreadsheetID, cellRange, [][]interface{}{{value}})
}

// Spreadsheet binds a client to one spreadsheet so callers can address cells
// by row and column number instead of A1 ranges.
type Spreadsheet struct {
	client        *Client
	spreadsheetID string
	readRange     string
}

func (c *Client) Spreadsheet(spreadsheetID, readRange string) *Spreadsheet {
	return &Spreadsheet{
		client:        c,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}
}

func (s *Spreadsheet) ReadAll(ctx context.Context) ([][]interface{}, error) {
	return s.client.ReadSheet(ctx, s.spreadsheetID, s.readRange)
}

func (s *Spreadsheet) UpdateCell(ctx context.Context, row, col int, value string) error {
	return s.client.UpdateCell(ctx, s.spreadsheetID, row, col, value)
}

// columnLetter converts a 1-indexed column number to its A1 letter form.
func columnLetter(col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return letters
}
