package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
)

// DefaultBoundaryURL serves California ZCTA polygons keyed by ZCTA5CE10.
const DefaultBoundaryURL = "https://raw.githubusercontent.com/OpenDataDE/State-zip-code-GeoJSON/master/ca_california_zip_codes_geo.min.json"

// Config holds all run settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	MetricsTextfile string

	// Cleaning.
	BulkErrorThreshold int
	ParseFailurePolicy domain.ParseFailurePolicy
	WeekdayNames       [7]string
	InputDelimiter     rune

	// Charts.
	HistogramBins      int
	MaxSessionHours    float64
	HoursRaw           bool
	WeeksPerYear       float64
	HeatmapBucketHours int
	ChartWorkers       int

	// Boundary fetch for the location chart.
	BoundaryURLs     []string
	BoundaryKey      string
	BoundaryTimeout  time.Duration
	BoundaryCacheDir string
	BoundaryCacheTTL time.Duration

	// Optional Kafka sink for cleaned records.
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaBatchSize int
}

// KafkaEnabled reports whether cleaned records should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	threshold, err := positiveInt("BULK_ERROR_THRESHOLD", 5000, 0)
	if err != nil {
		return nil, err
	}
	policy, err := parsePolicy(sharedcfg.EnvOrDefault("PARSE_FAILURE_POLICY", string(domain.PolicyDrop)))
	if err != nil {
		return nil, err
	}
	weekdays, err := parseWeekdayNames(os.Getenv("WEEKDAY_NAMES"))
	if err != nil {
		return nil, err
	}
	delimiter, err := parseDelimiter(sharedcfg.EnvOrDefault("INPUT_DELIMITER", ","))
	if err != nil {
		return nil, err
	}

	bins, err := positiveInt("HISTOGRAM_BINS", 24, 0)
	if err != nil {
		return nil, err
	}
	maxHours, err := positiveFloat("MAX_SESSION_HOURS", 24)
	if err != nil {
		return nil, err
	}
	weeks, err := positiveFloat("WEEKS_PER_YEAR", 52)
	if err != nil {
		return nil, err
	}
	bucket, err := positiveInt("HEATMAP_BUCKET_HOURS", 4, 24)
	if err != nil {
		return nil, err
	}
	if 24%bucket != 0 {
		return nil, errors.New("invalid HEATMAP_BUCKET_HOURS: must divide 24")
	}
	workers, err := positiveInt("CHART_WORKERS", 4, 16)
	if err != nil {
		return nil, err
	}

	boundaryTimeout, err := positiveDuration("BOUNDARY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := positiveDuration("BOUNDARY_CACHE_TTL", "168h")
	if err != nil {
		return nil, err
	}

	batchSize, err := positiveInt("KAFKA_BATCH_SIZE", 500, 10000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		BulkErrorThreshold: threshold,
		ParseFailurePolicy: policy,
		WeekdayNames:       weekdays,
		InputDelimiter:     delimiter,

		HistogramBins:      bins,
		MaxSessionHours:    maxHours,
		HoursRaw:           os.Getenv("HOURS_RAW") == "true",
		WeeksPerYear:       weeks,
		HeatmapBucketHours: bucket,
		ChartWorkers:       workers,

		BoundaryURLs:     splitList(sharedcfg.EnvOrDefault("BOUNDARY_URL", DefaultBoundaryURL)),
		BoundaryKey:      sharedcfg.EnvOrDefault("BOUNDARY_KEY", "ZCTA5CE10"),
		BoundaryTimeout:  boundaryTimeout,
		BoundaryCacheDir: os.Getenv("BOUNDARY_CACHE_DIR"),
		BoundaryCacheTTL: cacheTTL,

		KafkaTopic:     sharedcfg.EnvOrDefault("KAFKA_TOPIC", "volunteer-attendance-cleaned"),
		KafkaBatchSize: batchSize,
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if len(cfg.BoundaryURLs) == 0 {
		return nil, errors.New("BOUNDARY_URL is required")
	}
	if cfg.BoundaryKey == "" {
		return nil, errors.New("BOUNDARY_KEY is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// positiveInt reads key as an integer in (0, upper]; upper <= 0 means unbounded.
func positiveInt(key string, def, upper int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || (upper > 0 && n > upper) {
		if upper > 0 {
			return 0, fmt.Errorf("invalid %s: must be between 1 and %d", key, upper)
		}
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}

func positiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePolicy(s string) (domain.ParseFailurePolicy, error) {
	switch p := domain.ParseFailurePolicy(strings.ToLower(s)); p {
	case domain.PolicyDrop, domain.PolicyFail:
		return p, nil
	default:
		return "", fmt.Errorf("invalid PARSE_FAILURE_POLICY %q: want drop or fail", s)
	}
}

func parseWeekdayNames(s string) ([7]string, error) {
	if strings.TrimSpace(s) == "" {
		return domain.DefaultWeekdayNames(), nil
	}
	parts := splitList(s)
	var names [7]string
	if len(parts) != len(names) {
		return names, fmt.Errorf("invalid WEEKDAY_NAMES: want 7 names, got %d", len(parts))
	}
	seen := make(map[string]bool, len(parts))
	for i, p := range parts {
		if seen[p] {
			return names, fmt.Errorf("invalid WEEKDAY_NAMES: duplicate %q", p)
		}
		seen[p] = true
		names[i] = p
	}
	return names, nil
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid INPUT_DELIMITER %q: want a single character", s)
	}
	return r, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
