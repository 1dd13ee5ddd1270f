package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"etf_agent/internal/helper"
	"etf_agent/internal/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSN       = "DATABASE_DSN"
	brokerURLENV      = "BROKER_URL"
	envPrefix         = "AGENT"
)

// Config ...
type Config struct {
	DB string `mapstructure:"db_dsn" yaml:"db_dsn"`

	Market struct {
		Timezone      string        `mapstructure:"timezone" yaml:"timezone"`
		Open          string        `mapstructure:"open" yaml:"open"`
		Close         string        `mapstructure:"close" yaml:"close"`
		Holidays      []string      `mapstructure:"holidays" yaml:"holidays"`
		PreOpenWindow time.Duration `mapstructure:"pre_open_window" yaml:"pre_open_window"`
		OpenGrace     time.Duration `mapstructure:"open_grace" yaml:"open_grace"`
	} `mapstructure:"market" yaml:"market"`

	// Кандидаты: коды и метки решений (X / Y ...)
	Candidates []models.Candidate `mapstructure:"candidates" yaml:"candidates"`

	Decision struct {
		URL        string        `mapstructure:"url" yaml:"url"`
		Window     int           `mapstructure:"window" yaml:"window"`
		Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
		NeutralTag string        `mapstructure:"neutral_tag" yaml:"neutral_tag"`
	} `mapstructure:"decision" yaml:"decision"`

	Orders struct {
		FeeRate float64 `mapstructure:"fee_rate" yaml:"fee_rate"` // 0.00015 => 0.015%
	} `mapstructure:"orders" yaml:"orders"`

	Broker struct {
		URL            string        `mapstructure:"url" yaml:"url"`
		Account        string        `mapstructure:"account" yaml:"account"`
		Password       string        `mapstructure:"password" yaml:"password"`
		RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // 0 => ждём бесконечно
		PageInterval   time.Duration `mapstructure:"page_interval" yaml:"page_interval"`
	} `mapstructure:"broker" yaml:"broker"`

	Storage struct {
		Driver       string `mapstructure:"driver" yaml:"driver"` // memory | postgres
		HistoryTable string `mapstructure:"history_table" yaml:"history_table"`
		TodayTable   string `mapstructure:"today_table" yaml:"today_table"`
		HistoryDays  int    `mapstructure:"history_days" yaml:"history_days"`
	} `mapstructure:"storage" yaml:"storage"`

	Archive struct {
		Dir string `mapstructure:"dir" yaml:"dir"`
	} `mapstructure:"archive" yaml:"archive"`

	Health struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"health" yaml:"health"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		Host    string `mapstructure:"host" yaml:"host"`
		Port    int    `mapstructure:"port" yaml:"port"`
	} `mapstructure:"tracing" yaml:"tracing"`

	Log struct {
		Level       string `mapstructure:"level" yaml:"level"`
		Development bool   `mapstructure:"development" yaml:"development"`
	} `mapstructure:"log" yaml:"log"`
}

// setDefaults: без дефолта viper не видит ключ в env, поэтому здесь перечислены все ключи.
func setDefaults(v *viper.Viper) {
	v.SetDefault("db_dsn", "")

	v.SetDefault("market.timezone", "Asia/Seoul")
	v.SetDefault("market.open", "09:00")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.pre_open_window", "30m")
	v.SetDefault("market.open_grace", "10s")
	v.SetDefault("market.holidays", []string{})

	v.SetDefault("decision.url", "http://127.0.0.1:50051/predict")
	v.SetDefault("decision.window", 720)
	v.SetDefault("decision.timeout", "10s")
	v.SetDefault("decision.neutral_tag", "NOP")

	v.SetDefault("orders.fee_rate", 0.00015)

	v.SetDefault("broker.url", "ws://127.0.0.1:8787/ws")
	v.SetDefault("broker.account", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.request_timeout", "30s")
	v.SetDefault("broker.page_interval", "1s")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.history_table", "data_in_minute")
	v.SetDefault("storage.today_table", "today_in_minute")
	v.SetDefault("storage.history_days", 7)

	v.SetDefault("archive.dir", "")

	v.SetDefault("health.addr", ":8080")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "127.0.0.1")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	return Load("configs/" + configFileName)
}

// Load читает yaml через viper; любой ключ можно перебить env AGENT_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}
	if u := os.Getenv(brokerURLENV); u != "" {
		cfg.Broker.URL = u
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Candidates) < 2 {
		return fmt.Errorf("config: need at least 2 candidates, got %d", len(c.Candidates))
	}
	seen := make(map[models.DecisionTag]bool, len(c.Candidates))
	for _, cand := range c.Candidates {
		if cand.Code == "" || cand.Tag == "" {
			return fmt.Errorf("config: candidate %+v must have code and tag", cand)
		}
		if seen[cand.Tag] {
			return fmt.Errorf("config: duplicate candidate tag %q", cand.Tag)
		}
		seen[cand.Tag] = true
	}
	if seen[models.DecisionTag(c.Decision.NeutralTag)] {
		return fmt.Errorf("config: neutral tag %q collides with a candidate tag", c.Decision.NeutralTag)
	}
	if c.Decision.Window <= 0 {
		return fmt.Errorf("config: decision.window must be > 0")
	}
	if c.Orders.FeeRate < 0 || c.Orders.FeeRate >= 1 {
		return fmt.Errorf("config: orders.fee_rate must be in [0,1)")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := helper.ParseClock(c.Market.Open); err != nil {
		return fmt.Errorf("config: market.open: %w", err)
	}
	if _, err := helper.ParseClock(c.Market.Close); err != nil {
		return fmt.Errorf("config: market.close: %w", err)
	}
	if _, err := c.HolidaySet(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.DB == "" {
			return fmt.Errorf("config: storage.driver=postgres needs db_dsn")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: market.timezone: %w", err)
	}
	return loc, nil
}

// HolidaySet: выходные дни биржи, ключ YYYY-MM-DD.
func (c *Config) HolidaySet() (map[string]bool, error) {
	out := make(map[string]bool, len(c.Market.Holidays))
	for _, h := range c.Market.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return nil, fmt.Errorf("config: bad holiday %q: %w", h, err)
		}
		out[h] = true
	}
	return out, nil
}

// Redacted: yaml для стартового лога без секретов.
func (c *Config) Redacted() string {
	cp := *c
	if cp.DB != "" {
		cp.DB = "***"
	}
	if cp.Broker.Password != "" {
		cp.Broker.Password = "***"
	}
	b, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Sprintf("<config marshal error: %v>", err)
	}
	return string(b)
}
