package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Application ApplicationConfig `yaml:"application" mapstructure:"application"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Detection   DetectionConfig   `yaml:"detection" mapstructure:"detection"`
	Whitelist   WhitelistConfig   `yaml:"whitelist" mapstructure:"whitelist"`
	Recorder    RecorderConfig    `yaml:"recorder" mapstructure:"recorder"`
	Masking     MaskingConfig     `yaml:"masking" mapstructure:"masking"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	WebSocket   WebSocketConfig   `yaml:"websocket" mapstructure:"websocket"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
}

// ApplicationConfig names the deployment, used as the metrics namespace
type ApplicationConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Subsystem string `yaml:"subsystem" mapstructure:"subsystem"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// DetectionConfig lists the finders, in evaluation order
type DetectionConfig struct {
	Finders      []FinderConfig `yaml:"finders" mapstructure:"finders"`
	PhoneRegions []string       `yaml:"phone_regions" mapstructure:"phone_regions"`
	// LogFinders are finders whose span findings are written to the log
	LogFinders []string `yaml:"log_finders" mapstructure:"log_finders"`
}

// FinderConfig is one declarative finder definition
type FinderConfig struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Kind    string   `yaml:"kind" mapstructure:"kind"` // regex, credit_card, non_local_ipv4, phone_number, composite_phone_number
	Pattern string   `yaml:"pattern" mapstructure:"pattern"`
	Flags   string   `yaml:"flags" mapstructure:"flags"`
	Region  string   `yaml:"region" mapstructure:"region"`
	Regions []string `yaml:"regions" mapstructure:"regions"`
	Enabled *bool    `yaml:"enabled" mapstructure:"enabled"`
}

// WhitelistConfig selects and tunes the whitelist source
type WhitelistConfig struct {
	Source       string         `yaml:"source" mapstructure:"source"` // none, file, s3, redis, postgres
	TTL          time.Duration  `yaml:"ttl" mapstructure:"ttl"`
	FetchTimeout time.Duration  `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	File         FileSource     `yaml:"file" mapstructure:"file"`
	S3           S3Source       `yaml:"s3" mapstructure:"s3"`
	Redis        RedisSource    `yaml:"redis" mapstructure:"redis"`
	Postgres     PostgresSource `yaml:"postgres" mapstructure:"postgres"`
}

// FileSource reads the whitelist from the local filesystem
type FileSource struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// S3Source reads the whitelist from an S3 object
type S3Source struct {
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Key      string `yaml:"key" mapstructure:"key"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// RedisSource reads the whitelist from a Redis string key
type RedisSource struct {
	URL          string `yaml:"url" mapstructure:"url"`
	Key          string `yaml:"key" mapstructure:"key"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// PostgresSource reads the whitelist lines from a table
type PostgresSource struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	Table           string        `yaml:"table" mapstructure:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// RecorderConfig controls the periodic location summary
type RecorderConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// MaskingConfig holds the placeholder written over flagged values
type MaskingConfig struct {
	Placeholder string `yaml:"placeholder" mapstructure:"placeholder"`
}

// MetricsConfig contains prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// RateLimitConfig contains per-client API rate limiting
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	Path            string   `yaml:"path" mapstructure:"path"`
	Username        string   `yaml:"username" mapstructure:"username"`
	Password        string   `yaml:"password" mapstructure:"password"`
	ReadBufferSize  int      `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int      `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events          struct {
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// BatchConfig contains the span file scanner configuration
type BatchConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int `yaml:"worker_count" mapstructure:"worker_count"`
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Application: ApplicationConfig{
			Name:      "trace_sentinel",
			Subsystem: "secret_detector",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 4 << 20,
		},
		Detection: DetectionConfig{
			LogFinders: []string{"Credit_Card"},
		},
		Whitelist: WhitelistConfig{
			Source:       "none",
			TTL:          time.Hour,
			FetchTimeout: 30 * time.Second,
			S3: S3Source{
				Key: "secret-detector/whiteListItems.txt",
			},
			Redis: RedisSource{
				URL:          "redis://localhost:6379/0",
				Key:          "trace-sentinel:whitelist",
				PoolSize:     5,
				MinIdleConns: 1,
			},
			Postgres: PostgresSource{
				Table:           "whitelist_items",
				MaxOpenConns:    5,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Recorder: RecorderConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
		Masking: MaskingConfig{
			Placeholder: "Confidential data has been masked",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 600,
			Burst:          50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			AllowedOrigins:  []string{"*"},
		},
		Batch: BatchConfig{
			BatchSize:      500,
			WorkerCount:    4,
			ProgressReport: 10000,
		},
	}

	cfg.Logging.File.Path = "logs/trace-sentinel.log"
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
