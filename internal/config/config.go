package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all job settings. Values come from environment variables,
// falling back to an optional YAML file named by CONFIG_PATH, then to defaults.
type Config struct {
	// Aggregation.
	DistanceThreshold float64        `env:"DISTANCE_THRESHOLD" validate:"gte=0"`
	WindowDays        []int          `env:"WINDOW_DAYS" validate:"min=1,dive,gte=0"`
	Workers           int            `env:"WORKER_COUNT" validate:"gte=1"`
	WindowTimeout     time.Duration  `env:"WINDOW_TIMEOUT" validate:"gte=0"`
	ScanMode          string         `env:"SCAN_MODE" validate:"oneof=neighbor neighbors exact"`
	Location          *time.Location `env:"TIMEZONE" validate:"required"`
	MaxAttempts       int            `env:"MAX_ATTEMPTS" validate:"gte=1"`

	// Event source.
	Source      string `env:"SOURCE" validate:"oneof=csv postgres"`
	SourcePath  string `env:"SOURCE_PATH" validate:"required_if=Source csv"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=Source postgres"`
	SourceTable string `env:"SOURCE_TABLE" validate:"required_if=Source postgres"`

	// Dataset sink.
	Sink           string   `env:"SINK" validate:"oneof=csv kafka"`
	SinkPath       string   `env:"SINK_PATH" validate:"required_if=Sink csv"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS"`
	KafkaSinkTopic string   `env:"KAFKA_SINK_TOPIC" validate:"required_if=Sink kafka"`
	BatchSize      int      `env:"BATCH_SIZE" validate:"gte=1"`

	// Process.
	HTTPAddr        string        `env:"HTTP_ADDR"`
	LogLevel        string        `env:"LOG_LEVEL"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// Windows returns the configured lookback windows in order.
func (c *Config) Windows() []domain.Window {
	return domain.Windows(c.WindowDays...)
}

// Load reads configuration, applying defaults where unset. Every problem is
// reported as a *domain.ConfigurationError naming the offending variable.
func Load() (*Config, error) {
	k := koanf.New(".")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &domain.ConfigurationError{Field: "CONFIG_PATH", Reason: err.Error()}
		}
	}
	l := loader{k: k}

	cfg := &Config{
		ScanMode:       l.get("SCAN_MODE", "neighbor"),
		Source:         l.get("SOURCE", "csv"),
		SourcePath:     l.get("SOURCE_PATH", "data/detected_fires.csv"),
		DatabaseURL:    l.get("DATABASE_URL", ""),
		SourceTable:    l.get("SOURCE_TABLE", "detected_fires"),
		Sink:           l.get("SINK", "csv"),
		SinkPath:       l.get("SINK_PATH", "data/detected_fires_features.csv"),
		KafkaBrokers:   sharedcfg.ParseBrokers(l.get("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: l.get("KAFKA_SINK_TOPIC", "fire-proximity-features"),
		HTTPAddr:       l.get("HTTP_ADDR", ":8080"),
		LogLevel:       l.get("LOG_LEVEL", "info"),
		LogFormat:      l.get("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.DistanceThreshold, err = l.requiredFloat("DISTANCE_THRESHOLD"); err != nil {
		return nil, err
	}
	if cfg.WindowDays, err = l.requiredInts("WINDOW_DAYS"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = l.integer("WORKER_COUNT", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = l.integer("MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.WindowTimeout, err = l.duration("WINDOW_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Location, err = time.LoadLocation(l.get("TIMEZONE", "UTC")); err != nil {
		return nil, &domain.ConfigurationError{Field: "TIMEZONE", Reason: err.Error()}
	}
	if cfg.ShutdownTimeout, err = shared(l, "SHUTDOWN_TIMEOUT", sharedcfg.ParseShutdownTimeout, time.ParseDuration); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = shared(l, "BATCH_SIZE", sharedcfg.ParseBatchSize, strconv.Atoi); err != nil {
		return nil, err
	}

	cfg.KafkaBrokers = slices.DeleteFunc(cfg.KafkaBrokers, func(b string) bool {
		return strings.TrimSpace(b) == ""
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})

	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &domain.ConfigurationError{Field: "config", Reason: err.Error()}
		}
		fe := fieldErrs[0]
		return &domain.ConfigurationError{Field: envName(fe.Namespace()), Reason: describe(fe)}
	}

	if c.Sink == "kafka" && len(c.KafkaBrokers) == 0 {
		return &domain.ConfigurationError{Field: "KAFKA_BROKERS", Reason: "is required when SINK=kafka"}
	}
	return nil
}

// envName strips the struct prefix and any slice index from a validator namespace.
func envName(ns string) string {
	if i := strings.LastIndex(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "min":
		return "must list at least one value"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "required", "required_if":
		return "is required"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

// loader resolves a variable from the environment, then the config file.
type loader struct {
	k *koanf.Koanf
}

func fileKey(env string) string {
	return strings.ToLower(env)
}

// fromFile renders the file value for env, joining lists with commas.
func (l loader) fromFile(env string) (string, bool) {
	key := fileKey(env)
	if !l.k.Exists(key) {
		return "", false
	}
	switch v := l.k.Get(key).(type) {
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(v), true
	}
}

func (l loader) get(env, fallback string) string {
	if v, ok := l.fromFile(env); ok {
		fallback = v
	}
	return sharedcfg.EnvOrDefault(env, fallback)
}

func (l loader) requiredFloat(env string) (float64, error) {
	s := strings.TrimSpace(l.get(env, ""))
	if s == "" {
		return 0, &domain.ConfigurationError{Field: env, Reason: "is required"}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ConfigurationError{Field: env, Reason: fmt.Sprintf("invalid number %q", s)}
	}
	return f, nil
}

func (l loader) requiredInts(env string) ([]int, error) {
	s := strings.TrimSpace(l.get(env, ""))
	if s == "" {
		return nil, &domain.ConfigurationError{Field: env, Reason: "is required"}
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: env, Reason: fmt.Sprintf("invalid integer %q", part)}
		}
		out = append(out, n)
	}
	return out, nil
}

func (l loader) integer(env string, fallback int) (int, error) {
	s := l.get(env, strconv.Itoa(fallback))
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &domain.ConfigurationError{Field: env, Reason: fmt.Sprintf("invalid integer %q", s)}
	}
	return n, nil
}

func (l loader) duration(env string, fallback time.Duration) (time.Duration, error) {
	s := l.get(env, fallback.String())
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, &domain.ConfigurationError{Field: env, Reason: fmt.Sprintf("invalid duration %q", s)}
	}
	return d, nil
}

// shared defers to a storm-data-shared parser when env is set or the file is
// silent, so the process-level defaults match the sibling services.
func shared[T any](l loader, env string, parse func() (T, error), fileParse func(string) (T, error)) (T, error) {
	var zero T
	if _, set := os.LookupEnv(env); !set {
		if s, ok := l.fromFile(env); ok {
			v, err := fileParse(s)
			if err != nil {
				return zero, &domain.ConfigurationError{Field: env, Reason: fmt.Sprintf("invalid value %q", s)}
			}
			return v, nil
		}
	}
	v, err := parse()
	if err != nil {
		return zero, &domain.ConfigurationError{Field: env, Reason: err.Error()}
	}
	return v, nil
}
