package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type GatewayConfig struct {
	BaseURL       string        `koanf:"base_url"`
	APIKey        string        `koanf:"api_key"`
	WebhookSecret string        `koanf:"webhook_secret"`
	MinUnits      int64         `koanf:"min_units"`
	MaxUnits      int64         `koanf:"max_units"`
	Timeout       time.Duration `koanf:"timeout"`
}

type CashNetConfig struct {
	InternalKey string        `koanf:"internal_key"`
	CodeTTL     time.Duration `koanf:"code_ttl"`
	CodePrefix  string        `koanf:"code_prefix"`
	MinUnits    int64         `koanf:"min_units"`
	MaxUnits    int64         `koanf:"max_units"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
		Currency string `koanf:"currency"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	OrderLock struct {
		TTL     time.Duration `koanf:"ttl"`
		MaxWait time.Duration `koanf:"max_wait"`
	} `koanf:"order_lock"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers          []string `koanf:"brokers"`
		FulfillmentTopic string   `koanf:"fulfillment_topic"`
		GroupID          string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Gateways struct {
		Primary   GatewayConfig `koanf:"primary"`
		Secondary GatewayConfig `koanf:"secondary"`
		CashNet   CashNetConfig `koanf:"cashnet"`
	} `koanf:"gateways"`

	Router struct {
		FailureThreshold uint32        `koanf:"failure_threshold"`
		Cooldown         time.Duration `koanf:"cooldown"`
		MaxRetries       uint64        `koanf:"max_retries"`
		RetryBaseDelay   time.Duration `koanf:"retry_base_delay"`
	} `koanf:"router"`

	Commission struct {
		PlatformFeePermille int64 `koanf:"platform_fee_permille"`
	} `koanf:"commission"`

	Reconcile struct {
		Interval       time.Duration `koanf:"interval"`
		ConfirmTimeout time.Duration `koanf:"confirm_timeout"`
		BatchSize      int           `koanf:"batch_size"`
	} `koanf:"reconcile"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix PAYFLOW_, nested with __)
	// e.g. PAYFLOW_MYSQL__DSN, PAYFLOW_GATEWAYS__PRIMARY__API_KEY
	if err := k.Load(env.Provider("PAYFLOW_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "PAYFLOW_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.App.Currency == "" {
		return fmt.Errorf("app.currency required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Gateways.Primary.BaseURL == "" || c.Gateways.Secondary.BaseURL == "" {
		return fmt.Errorf("gateways.primary.base_url and gateways.secondary.base_url required")
	}
	if c.Commission.PlatformFeePermille < 0 || c.Commission.PlatformFeePermille > 1000 {
		return fmt.Errorf("commission.platform_fee_permille must be in [0,1000]")
	}
	if c.Router.FailureThreshold == 0 {
		return fmt.Errorf("router.failure_threshold must be positive")
	}
	return nil
}
