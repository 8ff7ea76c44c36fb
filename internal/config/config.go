package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from the environment and an
// optional .env file.
type Config struct {
	HTTPAddr string
	WebDir   string

	AnthropicAPIKey string
	ReportModel     string

	StateBackend string
	StateFile    string
	DBPath       string

	ReminderLocation    *time.Location
	NotifyWebhookURL    string
	NotifyWebhookSecret string

	KafkaBrokers []string
	KafkaTopic   string

	GenerateRatePerMin int
	SessionTTL         time.Duration
	ShutdownTimeout    time.Duration

	OTLPEndpoint string
}

// Load reads configuration from environment variables, applying defaults
// where unset. Values already in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	sessionTTL, err := parseDuration("SESSION_TTL", "12h")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	ratePerMin, err := parsePositiveInt("GENERATE_RATE_PER_MIN", 6)
	if err != nil {
		return nil, err
	}
	loc, err := parseLocation(os.Getenv("REMINDER_TZ"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:            envOrDefault("HTTP_ADDR", ":8090"),
		WebDir:              os.Getenv("WEB_DIR"),
		AnthropicAPIKey:     strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		ReportModel:         strings.TrimSpace(os.Getenv("REPORT_MODEL")),
		StateBackend:        strings.ToLower(envOrDefault("STATE_BACKEND", "file")),
		StateFile:           envOrDefault("STATE_FILE", "./data/state.json"),
		DBPath:              envOrDefault("DB_PATH", "./data/state.db"),
		ReminderLocation:    loc,
		NotifyWebhookURL:    strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL")),
		NotifyWebhookSecret: os.Getenv("NOTIFY_WEBHOOK_SECRET"),
		KafkaBrokers:        parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          envOrDefault("KAFKA_TOPIC", "patrol-reports"),
		GenerateRatePerMin:  ratePerMin,
		SessionTTL:          sessionTTL,
		ShutdownTimeout:     shutdownTimeout,
		OTLPEndpoint:        strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	switch cfg.StateBackend {
	case "memory", "file", "sqlite":
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q", cfg.StateBackend)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return cfg, nil
}

// StatePath is the file the selected state backend keeps its data in.
func (c *Config) StatePath() string {
	if c.StateBackend == "sqlite" {
		return c.DBPath
	}
	return c.StateFile
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TZ: %w", err)
	}
	return loc, nil
}

func parseList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
