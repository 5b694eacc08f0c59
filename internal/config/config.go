package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultDatasetURLs are the two CBS mobility tables the chart combines:
// 83496NED (2010-2017) and its successor 84707NED.
var DefaultDatasetURLs = []string{
	"https://opendata.cbs.nl/ODataApi/OData/83496NED",
	"https://opendata.cbs.nl/ODataApi/OData/84707NED",
}

// Config holds all settings, populated from environment variables.
type Config struct {
	DatasetURLs []string
	LayoutFile  string

	OutputFile   string
	ChartTitle   string
	ChartWidth   int
	ChartHeight  int
	XLSXOutput   string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	FetchTimeout      time.Duration
	FetchConcurrency  int
	FetchRetries      int
	FetchRetryBackoff time.Duration

	HTTPAddr        string
	RefreshInterval time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

// KafkaEnabled reports whether series are published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var errs []error
	dur := func(key, def string) time.Duration {
		d, err := parsePositiveDuration(key, def)
		errs = append(errs, err)
		return d
	}
	num := func(key string, def, lo, hi int) int {
		n, err := parseIntInRange(key, def, lo, hi)
		errs = append(errs, err)
		return n
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	errs = append(errs, err)

	cfg := &Config{
		DatasetURLs:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("DATASET_URLS", strings.Join(DefaultDatasetURLs, ","))),
		LayoutFile:   os.Getenv("LAYOUT_FILE"),
		OutputFile:   sharedcfg.EnvOrDefault("OUTPUT_FILE", "chart.html"),
		ChartTitle:   sharedcfg.EnvOrDefault("CHART_TITLE", "Deelname openbaar vervoer"),
		ChartWidth:   num("CHART_WIDTH", 1100, 100, 10000),
		ChartHeight:  num("CHART_HEIGHT", 680, 100, 10000),
		XLSXOutput:   os.Getenv("XLSX_OUTPUT"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "odata-chart-series"),

		FetchTimeout:      dur("FETCH_TIMEOUT", "30s"),
		FetchConcurrency:  num("FETCH_CONCURRENCY", 8, 1, 64),
		FetchRetries:      num("FETCH_RETRIES", 0, 0, 10),
		FetchRetryBackoff: dur("FETCH_RETRY_BACKOFF", "200ms"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		RefreshInterval: dur("REFRESH_INTERVAL", "1h"),
		ShutdownTimeout: shutdownTimeout,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags may have overridden after Load.
func (c *Config) Validate() error {
	if len(c.DatasetURLs) == 0 {
		return errors.New("DATASET_URLS is required")
	}
	if c.OutputFile == "" {
		return errors.New("OUTPUT_FILE is required")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.LogFormat)
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}
