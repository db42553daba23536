package fetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"rent_sell_count/internal/config"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// FailedCount is recorded when a query cannot be resolved. The sheet always
// gets a value for every column, whatever happened to the page.
const FailedCount = "0"

var nonDigit = regexp.MustCompile(`\D`)

type Fetcher struct {
	cfg        *config.Config
	limiter    *rate.Limiter
	newSession func(ctx context.Context) (session, error)
}

func New(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.PacingInterval), 1),
		newSession: func(ctx context.Context) (session, error) {
			return newChromeSession(ctx, cfg.Headless)
		},
	}
}

// FetchCount resolves the current listing count for a named query. Any
// failure degrades to FailedCount so one broken page never aborts a run.
func (f *Fetcher) FetchCount(ctx context.Context, name string) string {
	count, fetchErr := f.fetchCount(ctx, name)
	if fetchErr != nil {
		log.Error().
			Str("query", name).
			Str("kind", fetchErr.Kind.String()).
			Err(fetchErr.Err).
			Msg("Fetch failed, recording sentinel count")
		return FailedCount
	}
	return count
}

func (f *Fetcher) fetchCount(ctx context.Context, name string) (string, *Error) {
	start := time.Now()

	url, ok := f.cfg.QueryURL(name)
	if !ok {
		return "", &Error{Query: name, Kind: KindInvalidQuery, Err: fmt.Errorf("no URL registered for query %q", name)}
	}

	// Same-host pacing across the sequential queries
	if err := f.limiter.Wait(ctx); err != nil {
		return "", &Error{Query: name, Kind: KindTransport, Err: err}
	}

	sess, err := f.newSession(ctx)
	if err != nil {
		return "", &Error{Query: name, Kind: KindTransport, Err: err}
	}
	defer sess.close()

	log.Debug().
		Str("query", name).
		Str("url", url).
		Msg("Navigating to listing page")

	if fetchErr := f.navigateWithRetries(ctx, sess, name, url); fetchErr != nil {
		return "", fetchErr
	}

	log.Info().
		Str("query", name).
		Dur("navigation", time.Since(start)).
		Msg("Page ready")

	text, err := sess.elementText(f.cfg.CountSelector, f.cfg.SelectorTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Query: name, Kind: KindElementNotFound, Err: fmt.Errorf("selector %q not visible: %w", f.cfg.CountSelector, err)}
		}
		return "", &Error{Query: name, Kind: KindTransport, Err: err}
	}

	count := nonDigit.ReplaceAllString(text, "")
	log.Info().
		Str("query", name).
		Str("count", count).
		Dur("total", time.Since(start)).
		Msg("Retrieved listing count")

	return count, nil
}

// navigateWithRetries reloads the page on timeout. Only timeouts are retried,
// anything else from the browser fails the fetch immediately.
func (f *Fetcher) navigateWithRetries(ctx context.Context, sess session, name, url string) *Error {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.NavigationAttempts; attempt++ {
		err := sess.navigate(url, f.cfg.NavigationTimeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return &Error{Query: name, Kind: KindTransport, Err: err}
		}
		lastErr = err

		log.Warn().
			Str("query", name).
			Int("attempt", attempt).
			Int("max_attempts", f.cfg.NavigationAttempts).
			Msg("Navigation timed out")

		if attempt < f.cfg.NavigationAttempts {
			select {
			case <-ctx.Done():
				return &Error{Query: name, Kind: KindTransport, Err: ctx.Err()}
			case <-time.After(f.cfg.RetryPause):
			}
		}
	}
	return &Error{
		Query: name,
		Kind:  KindTimeout,
		Err:   fmt.Errorf("page did not load after %d attempts: %w", f.cfg.NavigationAttempts, lastErr),
	}
}
