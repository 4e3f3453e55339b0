package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Anonymizer AnonymizerConfig `yaml:"anonymizer" mapstructure:"anonymizer"`
	Documents  DocumentsConfig  `yaml:"documents" mapstructure:"documents"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Generator  GeneratorConfig  `yaml:"generator" mapstructure:"generator"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// EntityPolicyConfig describes how a single entity type is anonymized.
type EntityPolicyConfig struct {
	Action      string `yaml:"action" mapstructure:"action"` // redact, replace, or synthesize
	Replacement string `yaml:"replacement" mapstructure:"replacement"`
}

// AnonymizerConfig contains PHI anonymization engine configuration
type AnonymizerConfig struct {
	DefaultAction          string                        `yaml:"default_action" mapstructure:"default_action"`
	RedactionToken         string                        `yaml:"redaction_token" mapstructure:"redaction_token"`
	HashSecret             string                        `yaml:"hash_secret" mapstructure:"hash_secret"`
	HashPrefix             string                        `yaml:"hash_prefix" mapstructure:"hash_prefix"`
	HashLength             int                           `yaml:"hash_length" mapstructure:"hash_length"`
	SurrogatePreviewLength int                           `yaml:"surrogate_preview_length" mapstructure:"surrogate_preview_length"`
	EntityPolicies         map[string]EntityPolicyConfig `yaml:"entity_policies" mapstructure:"entity_policies"`
	NERModelPath           string                        `yaml:"ner_model_path" mapstructure:"ner_model_path"`
}

// DocumentsConfig contains the patient document store configuration
type DocumentsConfig struct {
	RedisURL          string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix         string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultCollection string        `yaml:"default_collection" mapstructure:"default_collection"`
	MaxConnections    int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns      int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Mode            string        `yaml:"mode" mapstructure:"mode"` // database or sqlfile
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	SQLPath         string        `yaml:"sql_path" mapstructure:"sql_path"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// RetryConfig contains retry/backoff settings for outbound calls
type RetryConfig struct {
	Attempts          int           `yaml:"attempts" mapstructure:"attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
}

// PipelineConfig contains patient pipeline configuration
type PipelineConfig struct {
	DDLPath          string      `yaml:"ddl_path" mapstructure:"ddl_path"`
	IncludeDefaulted bool        `yaml:"include_defaulted" mapstructure:"include_defaulted"`
	IncludeNullable  bool        `yaml:"include_nullable" mapstructure:"include_nullable"`
	Returning        []string    `yaml:"returning" mapstructure:"returning"`
	Retry            RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// GeneratorConfig contains the synthetic surrogate generator configuration
type GeneratorConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	Model             string        `yaml:"model" mapstructure:"model"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// EventsConfig contains WebSocket event hub configuration
type EventsConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	Path          string   `yaml:"path" mapstructure:"path"`
	BroadcastRuns bool     `yaml:"broadcast_runs" mapstructure:"broadcast_runs"`
	BroadcastSystem bool   `yaml:"broadcast_system" mapstructure:"broadcast_system"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Anonymizer: AnonymizerConfig{
			DefaultAction:          "replace",
			RedactionToken:         "[REDACTED]",
			HashSecret:             "ehr-anonymizer-safe-harbor",
			HashPrefix:             "anon",
			HashLength:             12,
			SurrogatePreviewLength: 48,
			EntityPolicies:         map[string]EntityPolicyConfig{},
		},
		Documents: DocumentsConfig{
			RedisURL:          "redis://localhost:6379/0",
			KeyPrefix:         "patients",
			DefaultCollection: "patients",
			MaxConnections:    10,
			MinIdleConns:      2,
			FetchTimeout:      5 * time.Second,
		},
		Storage: StorageConfig{
			Mode:            "database",
			DatabaseURL:     "postgres://localhost:5432/anonymizer?sslmode=disable",
			SQLPath:         "anonymizer_dry_run.sql",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Pipeline: PipelineConfig{
			DDLPath:          "configs/patients.ddl",
			IncludeDefaulted: false,
			IncludeNullable:  true,
			Returning:        []string{"id"},
			Retry: RetryConfig{
				Attempts:          3,
				InitialDelay:      200 * time.Millisecond,
				MaxDelay:          2 * time.Second,
				BackoffMultiplier: 2.0,
			},
		},
		Generator: GeneratorConfig{
			Enabled:           false,
			Endpoint:          "http://localhost:11434",
			Model:             "llama3",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Events: EventsConfig{
			Enabled:         true,
			Path:            "/ws",
			BroadcastRuns:   true,
			BroadcastSystem: true,
			AllowedOrigins:  []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
