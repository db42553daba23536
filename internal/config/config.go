package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Query names as they appear in logs, notifications and the history journal.
// The order of DefaultQueries is the column order of a sheet row.
const (
	QueryRent        = "RENT"
	QuerySell        = "SELL"
	QueryWanChaiRent = "WAN_CHAI_RENT"
	QueryWanChaiSell = "WAN_CHAI_SELL"
)

// Query pairs a name with the listing URL whose result count it tracks.
type Query struct {
	Name string
	URL  string
}

var DefaultQueries = []Query{
	{QueryRent, "https://hk.centanet.com/findproperty/list/rent"},
	{QuerySell, "https://hk.centanet.com/findproperty/list/buy"},
	{QueryWanChaiRent, "https://hk.centanet.com/findproperty/list/rent/%E7%81%A3%E4%BB%94_19-HMA160?q=33e8505214"},
	{QueryWanChaiSell, "https://hk.centanet.com/findproperty/list/buy/%E7%81%A3%E4%BB%94_19-HMA160?q=34d618e4ef"},
}

// Config carries everything a run needs. Build one with FromEnv and treat it
// as read-only afterwards.
type Config struct {
	Queries []Query

	// Result counts render inside the listing header after client-side
	// hydration, so navigation only waits for the DOM and the selector wait
	// carries its own timeout.
	CountSelector      string
	NavigationTimeout  time.Duration
	SelectorTimeout    time.Duration
	NavigationAttempts int
	RetryPause         time.Duration
	PacingInterval     time.Duration
	Headless           bool

	SpreadsheetID   string
	CredentialsFile string
	ReadRange       string

	LogFile     string
	HistoryFile string
	Location    *time.Location

	Ntfy       NtfyConfig
	Resilience ResilienceConfig
}

// NtfyConfig controls push alerts for degraded runs. Disabled unless a topic
// is configured.
type NtfyConfig struct {
	Enabled bool
	BaseURL string
	Topic   string
}

// FromEnv builds the run configuration from environment variables, falling
// back to the production defaults for anything unset.
func FromEnv() *Config {
	return &Config{
		Queries:            DefaultQueries,
		CountSelector:      "h2 span span",
		NavigationTimeout:  30 * time.Second,
		SelectorTimeout:    30 * time.Second,
		NavigationAttempts: 3,
		RetryPause:         time.Second,
		PacingInterval:     time.Second,
		Headless:           envBoolOrDefault("HEADLESS", true),
		SpreadsheetID:      envOrDefault("SPREADSHEET_ID", "1A69Ajirbxz3iuon4hahjEFA-fu63QYU_LJMhYk0WfYo"),
		CredentialsFile:    envOrDefault("CREDENTIALS_FILE", "token.json"),
		ReadRange:          "A:E",
		LogFile:            envOrDefault("LOG_FILE", "rent_sell_count.log"),
		HistoryFile:        envOrDefault("HISTORY_FILE", "rent_sell_count.db"),
		Location:           loadLocation(envOrDefault("TIMEZONE", "Local")),
		Ntfy: NtfyConfig{
			Enabled: envBoolOrDefault("NTFY_ENABLED", false),
			BaseURL: envOrDefault("NTFY_SERVER", "https://ntfy.sh"),
			Topic:   os.Getenv("NTFY_TOPIC"),
		},
		Resilience: DefaultResilienceConfig,
	}
}

// QueryURL returns the listing URL registered for a query name.
func (c *Config) QueryURL(name string) (string, bool) {
	for _, q := range c.Queries {
		if q.Name == name {
			return q.URL, true
		}
	}
	return "", false
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().
			Str("timezone", name).
			Err(err).
			Msg("Unknown timezone, dates will use system local time")
		return time.Local
	}
	return loc
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Msg("Unparseable boolean in environment, using default")
		return fallback
	}
	return parsed
}
