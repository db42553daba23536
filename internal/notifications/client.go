package notifications

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client pushes plain-text alerts to an ntfy topic when a run degrades. A
// client without a topic stays silent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type NotificationError struct {
	Type       string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s] attempt %d: %v", e.Type, e.Attempt, e.Underlying)
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout", "rate_limit":
		return true
	case "auth", "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, topic string, enabled bool) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    baseURL,
		topic:      topic,
		enabled:    enabled && topic != "",
		maxRetries: 2,
		baseDelay:  time.Second,
		maxDelay:   10 * time.Second,
	}
}

// NotifyDegradedRun alerts that some queries fell back to the sentinel count.
func (c *Client) NotifyDegradedRun(ctx context.Context, date string, failed []string, total int) {
	if !c.enabled || len(failed) == 0 {
		return
	}
	if err := c.SendNotification(ctx, formatDegradedRun(date, failed, total)); err != nil {
		log.Warn().Err(err).Msg("Degraded run notification failed")
	}
}

// NotifyRecordError alerts that the spreadsheet write failed.
func (c *Client) NotifyRecordError(ctx context.Context, date, result string) {
	if !c.enabled {
		return
	}
	if err := c.SendNotification(ctx, formatRecordError(date, result)); err != nil {
		log.Warn().Err(err).Msg("Record error notification failed")
	}
}

func formatDegradedRun(date string, failed []string, total int) string {
	return fmt.Sprintf("Rent/sell count %s: %d of %d queries degraded to 0 (%s)",
		date, len(failed), total, strings.Join(failed, ", "))
}

func formatRecordError(date, result string) string {
	return fmt.Sprintf("Rent/sell count %s: spreadsheet update failed. %s", date, result)
}

func (c *Client) SendNotification(ctx context.Context, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying notification after delay")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.sendSingleNotification(ctx, message, attempt+1)
		if err == nil {
			return nil
		}

		lastErr = err

		if notifErr, ok := err.(*NotificationError); ok {
			if !notifErr.IsRetryable() {
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Msg("Non-retryable error, giving up")
				return err
			}
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Msg("Notification attempt failed")
	}

	return &NotificationError{
		Type:       "max_retries_exceeded",
		StatusCode: 0,
		Attempt:    c.maxRetries + 1,
		Underlying: lastErr,
	}
}

func (c *Client) sendSingleNotification(ctx context.Context, message string, attempt int) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Str("message", message).
		Int("attempt", attempt).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{
			Type:       "client",
			StatusCode: 0,
			Attempt:    attempt,
			Underlying: err,
		}
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{
			Type:       "network",
			StatusCode: 0,
			Attempt:    attempt,
			Underlying: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       c.categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Int("attempt", attempt).
		Msg("Notification sent successfully")

	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	base := float64(c.baseDelay)
	backoff := base * math.Pow(2, float64(attempt-1))

	// Jitter of +-25% keeps repeated failures from syncing up
	jitter := rand.Float64()*0.5 - 0.25
	backoff = backoff * (1 + jitter)

	maxBackoff := float64(c.maxDelay)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return time.Duration(backoff)
}

func (c *Client) categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}
