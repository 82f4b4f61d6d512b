package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"cheaphours/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cheapest  CheapestConfig  `mapstructure:"cheapest"`
	Shelly    ShellyConfig    `mapstructure:"shelly"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Export    ExportConfig    `mapstructure:"export"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig points at the record file.
type StorageConfig struct {
	File string `mapstructure:"file"`
}

// SourcesConfig lists the data sources that feed the store.
type SourcesConfig struct {
	SpotHinta SpotHintaConfig `mapstructure:"spothinta"`
	Datahub   FileConfig      `mapstructure:"datahub"`
	JSON      FileConfig      `mapstructure:"json"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

// SpotHintaConfig captures the spot price API.
type SpotHintaConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	PriceField string        `mapstructure:"price_field"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// FileConfig enables a file backed source.
type FileConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
}

// PostgresConfig encapsulates PostgreSQL connectivity for meter readings.
type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int           `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Lookback        time.Duration `mapstructure:"lookback"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig governs refresh cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	// Send pushes the cheapest hours to Targets after every refresh.
	Send    bool     `mapstructure:"send"`
	Targets []string `mapstructure:"targets"`
}

// CheapestConfig sets defaults for the cheapest hours query.
type CheapestConfig struct {
	Hours int    `mapstructure:"hours"`
	Order string `mapstructure:"order"`
}

// ShellyConfig addresses a Shelly relay either over HTTP or MQTT.
type ShellyConfig struct {
	Host     string        `mapstructure:"host"`
	Relays   []int         `mapstructure:"relays"`
	Shift    bool          `mapstructure:"shift"`
	Timezone string        `mapstructure:"timezone"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
}

// MQTTConfig covers the broker used by the Shelly MQTT target.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TelegramConfig describes the Telegram target.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// CalendarConfig describes the Google Calendar target.
type CalendarConfig struct {
	ID      string `mapstructure:"id"`
	Token   string `mapstructure:"token"`
	APIBase string `mapstructure:"api_base"`
	Summary string `mapstructure:"summary"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// MetricsConfig enables the Prometheus endpoint during run.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHEAPHOURS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cheaphours")
	v.SetDefault("app.timezone", "Europe/Helsinki")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("storage.file", "db.csv")

	v.SetDefault("sources.spothinta.enabled", true)
	v.SetDefault("sources.spothinta.url", "https://api.spot-hinta.fi/TodayAndDayForward")
	v.SetDefault("sources.spothinta.price_field", "PriceNoTax")
	v.SetDefault("sources.spothinta.timeout", "10s")
	v.SetDefault("sources.spothinta.user_agent", "")
	v.SetDefault("sources.datahub.enabled", false)
	v.SetDefault("sources.datahub.file", "data/energy-consumption.csv")
	v.SetDefault("sources.json.enabled", false)
	v.SetDefault("sources.json.file", "data/energy-prices.json")
	v.SetDefault("sources.postgres.enabled", false)
	v.SetDefault("sources.postgres.max_conns", 4)
	v.SetDefault("sources.postgres.conn_max_lifetime", "30m")
	v.SetDefault("sources.postgres.lookback", "168h")
	v.SetDefault("sources.postgres.timeout", "10s")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.send", false)
	v.SetDefault("scheduler.targets", []string{})

	v.SetDefault("cheapest.hours", 3)
	v.SetDefault("cheapest.order", "time")

	v.SetDefault("shelly.relays", []int{0})
	v.SetDefault("shelly.shift", true)
	v.SetDefault("shelly.timezone", "Europe/Helsinki")
	v.SetDefault("shelly.timeout", "5s")
	v.SetDefault("shelly.mqtt.topic", "shellypro4pm")
	v.SetDefault("shelly.mqtt.client_id", "cheaphours")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("calendar.api_base", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("calendar.summary", "Sähköhälytys!")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
		dc.WeaklyTypedInput = true
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Storage.File == "" {
		return fmt.Errorf("storage.file must be set")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Cheapest.Hours < 0 {
		return fmt.Errorf("cheapest.hours cannot be negative")
	}
	if c.Cheapest.Order != "time" && c.Cheapest.Order != "price" {
		return fmt.Errorf("cheapest.order must be time or price, got %q", c.Cheapest.Order)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if _, err := time.LoadLocation(c.Shelly.Timezone); err != nil {
		return fmt.Errorf("shelly.timezone: %w", err)
	}
	for _, id := range c.Shelly.Relays {
		if id < 0 {
			return fmt.Errorf("shelly.relays cannot contain negative ids")
		}
	}
	if c.Sources.Postgres.Enabled && c.Sources.Postgres.DSN == "" {
		return fmt.Errorf("sources.postgres.dsn is required when postgres is enabled")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required")
		}
	}
	if c.Scheduler.Send && len(c.Scheduler.Targets) == 0 {
		return fmt.Errorf("scheduler.targets must list at least one target when scheduler.send is on")
	}
	return nil
}

// Location returns the display time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
