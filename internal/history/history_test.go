package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	journal, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer journal.Close()

	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	runs := []Record{
		{Date: "2024-03-04", Rent: "100", Sell: "200", WanChaiRent: "10", WanChaiSell: "20", SheetRow: 2, Result: "Success!", RecordedAt: base},
		{Date: "2024-03-05", Rent: "101", Sell: "201", WanChaiRent: "11", WanChaiSell: "21", SheetRow: 3, Result: "Success!", RecordedAt: base.AddDate(0, 0, 1)},
		{Date: "2024-03-06", Rent: "0", Sell: "202", WanChaiRent: "12", WanChaiSell: "22", SheetRow: 4, Result: "Error: failed to read recorded rows", RecordedAt: base.AddDate(0, 0, 2)},
	}
	for _, rec := range runs {
		if err := journal.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := journal.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Date != "2024-03-06" || recent[1].Date != "2024-03-05" {
		t.Errorf("expected newest first, got %s then %s", recent[0].Date, recent[1].Date)
	}
	if recent[0].Rent != "0" || recent[0].SheetRow != 4 {
		t.Errorf("fields not preserved: %+v", recent[0])
	}
	if recent[0].Result != "Error: failed to read recorded rows" {
		t.Errorf("result not preserved: %q", recent[0].Result)
	}
	if !recent[1].RecordedAt.Equal(base.AddDate(0, 0, 1)) {
		t.Errorf("timestamp not preserved: %v", recent[1].RecordedAt)
	}
}

func TestJournalPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	journal, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := Record{Date: "2024-03-04", Rent: "5", Sell: "6", WanChaiRent: "7", WanChaiSell: "8", SheetRow: 2, Result: "Success!", RecordedAt: time.Now().UTC()}
	if err := journal.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recent, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Date != "2024-03-04" {
		t.Fatalf("journal did not persist: %+v", recent)
	}
}

func TestJournalRecentOnEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	journal, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer journal.Close()

	recent, err := journal.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no records, got %d", len(recent))
	}
}
