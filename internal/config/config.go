package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HydrometBaseURL string
	HydrometTimeout time.Duration
	OutputDir       string
	SourceEPSG      int
	WellIDs         []string
	WellInfoCache   int

	RenderInterval time.Duration
	RunOnce        bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional run-summary publishing.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaSummaryTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	hydrometTimeout, err := parseDuration("HYDROMET_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	renderInterval, err := parseDuration("RENDER_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	sourceEPSG, err := parseInt("SOURCE_EPSG", 32719)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("WELL_INFO_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	runOnce, err := parseBool("RUN_ONCE", false)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HydrometBaseURL: envOrDefault("HYDROMET_BASE_URL", "https://hydromet4api.hidrofuturo.cl/api/v1"),
		HydrometTimeout: hydrometTimeout,
		OutputDir:       envOrDefault("OUTPUT_DIR", "outputs"),
		SourceEPSG:      sourceEPSG,
		WellIDs:         splitList(os.Getenv("WELL_IDS")),
		WellInfoCache:   cacheSize,

		RenderInterval: renderInterval,
		RunOnce:        runOnce,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:      kafkaEnabled,
		KafkaBrokers:      splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSummaryTopic: envOrDefault("KAFKA_SUMMARY_TOPIC", "hydro-run-manifests"),
	}

	if cfg.HydrometBaseURL == "" {
		return nil, fmt.Errorf("HYDROMET_BASE_URL is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("OUTPUT_DIR is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
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

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

// splitList parses a comma-separated list, dropping empty elements.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
