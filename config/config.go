package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"
)

const VERSION = "1.0"

type Config struct {
	Database    DatabaseConfig
	Builder     BuilderConfig
	Drag        DragConfig
	Preview     PreviewConfig
	SMTP        SMTPConfig
	Tracing     TracingConfig
	Environment string
	LogLevel    string
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// BuilderConfig configures the builder store and persisted documents
type BuilderConfig struct {
	HistoryLimit  int    // 0 keeps every snapshot
	SchemaVersion int    // attached to every persisted document
	IDStrategy    string // "uuid" or "nanoid"
}

// DragConfig holds the drag sensor thresholds
type DragConfig struct {
	PointerDistance float64
	TouchDelay      time.Duration
	TouchTolerance  float64
}

type PreviewConfig struct {
	CacheTTL time.Duration
}

// SMTPConfig is used for test sends of draft documents
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	TLSPolicy string
	// TestSendsPerMinute caps test sends per document, 0 disables the cap
	TestSendsPerMinute int
}

// Enabled reports whether test sends can reach an SMTP server
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.FromEmail != ""
}

type TracingConfig struct {
	Enabled             bool
	ServiceName         string
	SamplingProbability float64

	// Trace exporter: jaeger, zipkin, stackdriver, datadog, xray, none
	TraceExporter string

	JaegerEndpoint       string
	ZipkinEndpoint       string
	StackdriverProjectID string
	DatadogAgentAddress  string
	DatadogAPIKey        string
	XRayRegion           string

	// Comma separated metrics exporters: prometheus, stackdriver, datadog, none
	MetricsExporter string
	PrometheusPort  int
}

// LoadOptions contains options for loading configuration
type LoadOptions struct {
	EnvFile string // Optional environment file to load (e.g., ".env", ".env.test")
}

// Load loads the configuration with default options
func Load() (*Config, error) {
	// Try to load .env file but don't require it
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions loads the configuration with the specified options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "emailbuilder")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VERSION", VERSION)

	// Builder defaults
	v.SetDefault("BUILDER_HISTORY_LIMIT", 0)
	v.SetDefault("BUILDER_SCHEMA_VERSION", 1)
	v.SetDefault("BUILDER_ID_STRATEGY", "uuid")

	// Drag sensor defaults
	v.SetDefault("DRAG_POINTER_DISTANCE", 8)
	v.SetDefault("DRAG_TOUCH_DELAY_MS", 250)
	v.SetDefault("DRAG_TOUCH_TOLERANCE", 5)

	v.SetDefault("PREVIEW_CACHE_TTL_SECONDS", 300)

	// Test send defaults
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM_EMAIL", "")
	v.SetDefault("SMTP_FROM_NAME", "Email Builder")
	v.SetDefault("SMTP_TLS_POLICY", "opportunistic")
	v.SetDefault("SMTP_TEST_SENDS_PER_MINUTE", 6)

	// Tracing defaults
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "emailbuilder")
	v.SetDefault("TRACING_SAMPLING_PROBABILITY", 0.1)
	v.SetDefault("TRACING_TRACE_EXPORTER", "none")
	v.SetDefault("TRACING_JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	v.SetDefault("TRACING_ZIPKIN_ENDPOINT", "http://localhost:9411/api/v2/spans")
	v.SetDefault("TRACING_STACKDRIVER_PROJECT_ID", "")
	v.SetDefault("TRACING_DATADOG_AGENT_ADDRESS", "localhost:8126")
	v.SetDefault("TRACING_DATADOG_API_KEY", "")
	v.SetDefault("TRACING_XRAY_REGION", "us-west-2")
	v.SetDefault("TRACING_METRICS_EXPORTER", "none")
	v.SetDefault("TRACING_PROMETHEUS_PORT", 9464)

	// Load environment file if specified
	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}

		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// It's okay if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config := &Config{
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Builder: BuilderConfig{
			HistoryLimit:  v.GetInt("BUILDER_HISTORY_LIMIT"),
			SchemaVersion: v.GetInt("BUILDER_SCHEMA_VERSION"),
			IDStrategy:    strings.ToLower(v.GetString("BUILDER_ID_STRATEGY")),
		},
		Drag: DragConfig{
			PointerDistance: v.GetFloat64("DRAG_POINTER_DISTANCE"),
			TouchDelay:      time.Duration(v.GetInt("DRAG_TOUCH_DELAY_MS")) * time.Millisecond,
			TouchTolerance:  v.GetFloat64("DRAG_TOUCH_TOLERANCE"),
		},
		Preview: PreviewConfig{
			CacheTTL: time.Duration(v.GetInt("PREVIEW_CACHE_TTL_SECONDS")) * time.Second,
		},
		SMTP: SMTPConfig{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Username:  v.GetString("SMTP_USERNAME"),
			Password:  v.GetString("SMTP_PASSWORD"),
			FromEmail: v.GetString("SMTP_FROM_EMAIL"),
			FromName:  v.GetString("SMTP_FROM_NAME"),
			TLSPolicy: v.GetString("SMTP_TLS_POLICY"),

			TestSendsPerMinute: v.GetInt("SMTP_TEST_SENDS_PER_MINUTE"),
		},
		Tracing: TracingConfig{
			Enabled:              v.GetBool("TRACING_ENABLED"),
			ServiceName:          v.GetString("TRACING_SERVICE_NAME"),
			SamplingProbability:  v.GetFloat64("TRACING_SAMPLING_PROBABILITY"),
			TraceExporter:        v.GetString("TRACING_TRACE_EXPORTER"),
			JaegerEndpoint:       v.GetString("TRACING_JAEGER_ENDPOINT"),
			ZipkinEndpoint:       v.GetString("TRACING_ZIPKIN_ENDPOINT"),
			StackdriverProjectID: v.GetString("TRACING_STACKDRIVER_PROJECT_ID"),
			DatadogAgentAddress:  v.GetString("TRACING_DATADOG_AGENT_ADDRESS"),
			DatadogAPIKey:        v.GetString("TRACING_DATADOG_API_KEY"),
			XRayRegion:           v.GetString("TRACING_XRAY_REGION"),
			MetricsExporter:      v.GetString("TRACING_METRICS_EXPORTER"),
			PrometheusPort:       v.GetInt("TRACING_PROMETHEUS_PORT"),
		},
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Version:     v.GetString("VERSION"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the values that cannot be defaulted away
func (c *Config) Validate() error {
	if c.Builder.HistoryLimit < 0 {
		return fmt.Errorf("BUILDER_HISTORY_LIMIT must be 0 or positive, got %d", c.Builder.HistoryLimit)
	}
	if c.Builder.HistoryLimit == 1 {
		return fmt.Errorf("BUILDER_HISTORY_LIMIT of 1 would disable undo")
	}
	if c.Builder.SchemaVersion < 1 {
		return fmt.Errorf("BUILDER_SCHEMA_VERSION must be at least 1, got %d", c.Builder.SchemaVersion)
	}
	switch c.Builder.IDStrategy {
	case "uuid", "nanoid":
	default:
		return fmt.Errorf("BUILDER_ID_STRATEGY must be uuid or nanoid, got %q", c.Builder.IDStrategy)
	}
	if c.SMTP.Host != "" && c.SMTP.FromEmail != "" && !govalidator.IsEmail(c.SMTP.FromEmail) {
		return fmt.Errorf("SMTP_FROM_EMAIL must be a valid email address, got %q", c.SMTP.FromEmail)
	}
	if c.SMTP.TestSendsPerMinute < 0 {
		return fmt.Errorf("SMTP_TEST_SENDS_PER_MINUTE must be 0 or positive, got %d", c.SMTP.TestSendsPerMinute)
	}
	if c.Tracing.SamplingProbability < 0 || c.Tracing.SamplingProbability > 1 {
		return fmt.Errorf("TRACING_SAMPLING_PROBABILITY must be between 0 and 1")
	}
	if c.Drag.PointerDistance < 0 || c.Drag.TouchTolerance < 0 || c.Drag.TouchDelay < 0 {
		return fmt.Errorf("drag sensor thresholds must not be negative")
	}
	return nil
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SensorConfig maps the drag settings onto the coordinator's sensor thresholds
func (c *Config) SensorConfig() emailbuilder.SensorConfig {
	return emailbuilder.SensorConfig{
		PointerDistance: c.Drag.PointerDistance,
		TouchDelay:      c.Drag.TouchDelay,
		TouchTolerance:  c.Drag.TouchTolerance,
	}
}

// StoreOptions returns the builder store options derived from the configuration
func (c *Config) StoreOptions() []emailbuilder.StoreOption {
	return []emailbuilder.StoreOption{
		emailbuilder.WithHistoryLimit(c.Builder.HistoryLimit),
		emailbuilder.WithIDGenerator(emailbuilder.NewIDGenerator(c.Builder.IDStrategy)),
	}
}
