package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"rent_sell_count/internal/app"
	"rent_sell_count/internal/config"
	"rent_sell_count/internal/fetch"
	"rent_sell_count/internal/history"
	"rent_sell_count/internal/notifications"
	"rent_sell_count/internal/record"

	"github.com/rs/zerolog/log"
)

func main() {
	historyCount := flag.Int("history", 0, "print the most recent recorded runs and exit")
	flag.Parse()

	app.SetupEnvironment()

	cfg := config.FromEnv()
	closeLog := app.OpenLogFile(cfg.LogFile)
	defer closeLog()

	ctx := context.Background()

	if *historyCount > 0 {
		printHistory(ctx, cfg, *historyCount)
		return
	}

	fmt.Println(run(ctx, cfg))
}

// run collects the four listing counts and records them as one dated row.
// The returned string is the run outcome for stdout.
func run(ctx context.Context, cfg *config.Config) string {
	start := time.Now()
	log.Info().Msg("Starting rent/sell count collection")

	fetcher := fetch.New(cfg)

	rent := fetcher.FetchCount(ctx, config.QueryRent)
	sell := fetcher.FetchCount(ctx, config.QuerySell)
	wanChaiRent := fetcher.FetchCount(ctx, config.QueryWanChaiRent)
	wanChaiSell := fetcher.FetchCount(ctx, config.QueryWanChaiSell)

	counts := record.Counts{
		Rent:        rent,
		Sell:        sell,
		WanChaiRent: wanChaiRent,
		WanChaiSell: wanChaiSell,
	}
	degraded := degradedQueries(counts)

	result, row := record.New(cfg).Record(ctx, counts)

	date := time.Now().In(cfg.Location).Format(record.DateLayout)
	journalRun(ctx, cfg, date, counts, row, result)

	notifier := notifications.NewClient(cfg.Ntfy.BaseURL, cfg.Ntfy.Topic, cfg.Ntfy.Enabled)
	notifier.NotifyDegradedRun(ctx, date, degraded, len(cfg.Queries))
	if result != record.Success {
		notifier.NotifyRecordError(ctx, date, result)
	}

	log.Info().
		Str("result", result).
		Int("degraded_queries", len(degraded)).
		Dur("elapsed", time.Since(start)).
		Msg("Run complete")

	return result
}

// degradedQueries names the queries that came back as the sentinel count. A
// genuine zero count is indistinguishable from the sentinel, which the site
// never produces in practice.
func degradedQueries(counts record.Counts) []string {
	var degraded []string
	for _, q := range []struct {
		name  string
		count string
	}{
		{config.QueryRent, counts.Rent},
		{config.QuerySell, counts.Sell},
		{config.QueryWanChaiRent, counts.WanChaiRent},
		{config.QueryWanChaiSell, counts.WanChaiSell},
	} {
		if q.count == fetch.FailedCount {
			degraded = append(degraded, q.name)
		}
	}
	return degraded
}

// journalRun appends the outcome to the local journal. Journal trouble never
// fails a run.
func journalRun(ctx context.Context, cfg *config.Config, date string, counts record.Counts, row int, result string) {
	journal, err := history.Open(cfg.HistoryFile)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.HistoryFile).Msg("History journal unavailable")
		return
	}
	defer journal.Close()

	rec := history.Record{
		Date:        date,
		Rent:        counts.Rent,
		Sell:        counts.Sell,
		WanChaiRent: counts.WanChaiRent,
		WanChaiSell: counts.WanChaiSell,
		SheetRow:    row,
		Result:      result,
		RecordedAt:  time.Now().UTC(),
	}
	if err := journal.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("Failed to journal run")
	}
}

func printHistory(ctx context.Context, cfg *config.Config, n int) {
	journal, err := history.Open(cfg.HistoryFile)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.HistoryFile).Msg("Could not open history journal")
		return
	}
	defer journal.Close()

	records, err := journal.Recent(ctx, n)
	if err != nil {
		log.Error().Err(err).Msg("Could not read history journal")
		return
	}
	if len(records) == 0 {
		fmt.Println("No recorded runs")
		return
	}
	for _, rec := range records {
		fmt.Printf("%s  rent=%s sell=%s wan_chai_rent=%s wan_chai_sell=%s row=%d  %s\n",
			rec.Date, rec.Rent, rec.Sell, rec.WanChaiRent, rec.WanChaiSell, rec.SheetRow, rec.Result)
	}
}
