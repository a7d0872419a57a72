// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config - корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Cookie    CookieConfig    `yaml:"cookie"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig - таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig - сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"4000"`
	// BasePath - префикс API-маршрутов (например, "/api").
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:""`
	// TrustProxy включает разбор X-Forwarded-For/X-Real-IP.
	TrustProxy     bool     `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска токенов и защиты от перебора.
type AuthConfig struct {
	AccessTokenSecret  string `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshTokenSecret string `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTTLMin       int    `yaml:"access_ttl_min" env:"ACCESS_TTL_MIN" env-default:"15"`
	RefreshTTLDays     int    `yaml:"refresh_ttl_days" env:"REFRESH_TTL_DAYS" env-default:"7"`

	LockoutThreshold int           `yaml:"lockout_threshold" env:"LOCKOUT_THRESHOLD" env-default:"5"`
	LockoutDuration  time.Duration `yaml:"lockout_duration" env:"LOCKOUT_DURATION" env-default:"15m"`
	LoginDelayMin    time.Duration `yaml:"login_delay_min" env:"LOGIN_DELAY_MIN" env-default:"220ms"`
	LoginDelayMax    time.Duration `yaml:"login_delay_max" env:"LOGIN_DELAY_MAX" env-default:"420ms"`
}

// AccessTTL - время жизни access-токена.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTTLMin) * time.Minute
}

// RefreshTTL - время жизни refresh-токена.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTTLDays) * 24 * time.Hour
}

// CookieConfig - атрибуты cookie refresh_token и csrf_token.
type CookieConfig struct {
	SameSite string        `yaml:"same_site" env:"COOKIE_SAMESITE" env-default:"lax"`
	Secure   bool          `yaml:"secure" env:"COOKIE_SECURE" env-default:"false"`
	CSRFTTL  time.Duration `yaml:"csrf_ttl" env:"CSRF_TTL" env-default:"24h"`
}

// RateLimitConfig - лимит попыток входа с одного IP.
type RateLimitConfig struct {
	LoginPerWindow int           `yaml:"login_per_window" env:"LOGIN_RATE_LIMIT" env-default:"10"`
	Window         time.Duration `yaml:"window" env:"LOGIN_RATE_WINDOW" env-default:"1m"`
}

// DBConfig - настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL" env-required:"true"`
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	read := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	switch {
	case path != "":
		if err := read(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := read(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := read("local.yaml"); err != nil {
				return nil, err
			}

			break
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("cookie.same_site must be lax, strict or none, got %q", c.Cookie.SameSite))
	}

	// Браузеры отбрасывают SameSite=None без Secure.
	if strings.EqualFold(c.Cookie.SameSite, "none") && !c.Cookie.Secure {
		errs = append(errs, errors.New("cookie.same_site=none requires cookie.secure=true"))
	}

	if c.Auth.AccessTTLMin <= 0 || c.Auth.RefreshTTLDays <= 0 {
		errs = append(errs, errors.New("auth: token lifetimes must be positive"))
	}

	if c.Auth.LockoutThreshold <= 0 {
		errs = append(errs, errors.New("auth.lockout_threshold must be positive"))
	}

	if c.Auth.LoginDelayMin < 0 || c.Auth.LoginDelayMax < c.Auth.LoginDelayMin {
		errs = append(errs, errors.New("auth: login delay range is invalid"))
	}

	if c.RateLimit.LoginPerWindow <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit: limit and window must be positive"))
	}

	return errors.Join(errs...)
}
