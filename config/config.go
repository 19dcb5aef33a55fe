package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App App `mapstructure:"app"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Telegram Bot API
	Telegram TelegramConfig `mapstructure:"telegram"`

	// Facebook Conversions API
	Facebook FacebookConfig `mapstructure:"facebook"`

	// Tracking surface behaviour
	Tracking TrackingConfig `mapstructure:"tracking"`
}

type App struct {
	Env           string `mapstructure:"env"`
	Port          int    `mapstructure:"port"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port   int    `mapstructure:"port"`
	Target string `mapstructure:"target"`
}

type TelegramConfig struct {
	// APIBaseURL overrides the Bot API host, mainly for tests and local relays.
	APIBaseURL string `mapstructure:"api_base_url"`
	// ManageWebhooks makes the server register each stored bot's webhook at boot.
	ManageWebhooks bool `mapstructure:"manage_webhooks"`
}

type FacebookConfig struct {
	GraphVersion string `mapstructure:"graph_version"`
	Timeout      string `mapstructure:"timeout"`
}

type TrackingConfig struct {
	// DedupWindow is the trailing interval during which identical events are suppressed.
	DedupWindow string `mapstructure:"dedup_window"`
	// DecorateHosts are host patterns whose outbound anchors receive visitor params.
	DecorateHosts []string `mapstructure:"decorate_hosts"`
	// Source is the default source tag merged into event metadata.
	Source string `mapstructure:"source"`
}

// DedupWindowDuration parses the configured window, defaulting to 5 minutes.
func (t TrackingConfig) DedupWindowDuration() time.Duration {
	if t.DedupWindow == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(t.DedupWindow)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.port", 8080)
	v.SetDefault("facebook.graph_version", "v18.0")
	v.SetDefault("tracking.dedup_window", "5m")
	v.SetDefault("tracking.source", "web")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.port", "APP_PORT")
	v.BindEnv("app.public_base_url", "PUBLIC_BASE_URL")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
	v.BindEnv("prometheus.target", "PROM_TARGET")

	// Telegram
	v.BindEnv("telegram.api_base_url", "TG_API_BASE_URL")
	v.BindEnv("telegram.manage_webhooks", "TG_MANAGE_WEBHOOKS")

	// Facebook
	v.BindEnv("facebook.graph_version", "FB_GRAPH_VERSION")
	v.BindEnv("facebook.timeout", "FB_TIMEOUT")

	// Tracking
	v.BindEnv("tracking.dedup_window", "TRACK_DEDUP_WINDOW")
	v.BindEnv("tracking.source", "TRACK_SOURCE")
}
