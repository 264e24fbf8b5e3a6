// Package config loads service configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file
// named by CONFIG_FILE, then environment variables. A .env file in the
// working directory is loaded into the environment first if present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds process identity and listener settings.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Principal       string        `yaml:"principal"`
	HTTPPort        string        `yaml:"httpPort"`
	GRPCPort        string        `yaml:"grpcPort"`
	MetricsPort     string        `yaml:"metricsPort"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PipelineConfig holds processing latencies, scoring parameters and task limits.
type PipelineConfig struct {
	IngestLatency      time.Duration `yaml:"ingestLatency"`
	RescoreLatency     time.Duration `yaml:"rescoreLatency"`
	MaxTextLength      int           `yaml:"maxTextLength"`
	Baseline           float64       `yaml:"baseline"`
	Variance           float64       `yaml:"variance"`
	ReviewThreshold    float64       `yaml:"reviewThreshold"`
	MaxConcurrentTasks int           `yaml:"maxConcurrentTasks"`
	TaskTimeout        time.Duration `yaml:"taskTimeout"`
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	TopicScored   string   `yaml:"topicScored"`
	TopicRescored string   `yaml:"topicRescored"`
	Principal     string   `yaml:"principal"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "transcript-insights-service",
			Principal:       "svc-transcript-insights",
			HTTPPort:        "8000",
			GRPCPort:        "50051",
			MetricsPort:     "9090",
			ShutdownTimeout: 15 * time.Second,
		},
		Pipeline: PipelineConfig{
			IngestLatency:      3 * time.Second,
			RescoreLatency:     2 * time.Second,
			MaxTextLength:      5000,
			Baseline:           0.8,
			Variance:           0.1,
			ReviewThreshold:    0.5,
			MaxConcurrentTasks: 64,
			TaskTimeout:        30 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			TopicScored:   "transcript.scored",
			TopicRescored: "transcript.rescored",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
// Only an unreadable or malformed CONFIG_FILE is an error; invalid individual
// values fall back to defaults.
func Load() (*Config, error) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Service
	s.Name = envOrDefault("SERVICE_NAME", s.Name)
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPPort = envOrDefault("HTTP_PORT", s.HTTPPort)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.MetricsPort = envOrDefault("METRICS_PORT", s.MetricsPort)
	s.ShutdownTimeout = envOrDefaultDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	p := &c.Pipeline
	p.IngestLatency = envOrDefaultDuration("INGEST_LATENCY", p.IngestLatency)
	p.RescoreLatency = envOrDefaultDuration("RESCORE_LATENCY", p.RescoreLatency)
	p.MaxTextLength = envOrDefaultInt("MAX_TEXT_LENGTH", p.MaxTextLength)
	p.Baseline = envOrDefaultFloat("SCORE_BASELINE", p.Baseline)
	p.Variance = envOrDefaultFloat("SCORE_VARIANCE", p.Variance)
	p.ReviewThreshold = envOrDefaultFloat("REVIEW_THRESHOLD", p.ReviewThreshold)
	p.MaxConcurrentTasks = envOrDefaultInt("MAX_CONCURRENT_TASKS", p.MaxConcurrentTasks)
	p.TaskTimeout = envOrDefaultDuration("TASK_TIMEOUT", p.TaskTimeout)

	k := &c.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultList("KAFKA_BROKERS", k.Brokers)
	k.TopicScored = envOrDefault("KAFKA_TOPIC_SCORED", k.TopicScored)
	k.TopicRescored = envOrDefault("KAFKA_TOPIC_RESCORED", k.TopicRescored)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)

	o := &c.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	def := Defaults()

	if c.Pipeline.IngestLatency < 0 {
		c.Pipeline.IngestLatency = def.Pipeline.IngestLatency
	}
	if c.Pipeline.RescoreLatency < 0 {
		c.Pipeline.RescoreLatency = def.Pipeline.RescoreLatency
	}
	if c.Pipeline.MaxTextLength <= 0 {
		c.Pipeline.MaxTextLength = def.Pipeline.MaxTextLength
	}
	if c.Pipeline.Variance < 0 {
		c.Pipeline.Variance = def.Pipeline.Variance
	}
	if c.Pipeline.MaxConcurrentTasks < 0 {
		c.Pipeline.MaxConcurrentTasks = def.Pipeline.MaxConcurrentTasks
	}
	if c.Service.ShutdownTimeout <= 0 {
		c.Service.ShutdownTimeout = def.Service.ShutdownTimeout
	}
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// envOrDefaultList parses a comma-separated list, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
