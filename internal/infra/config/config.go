package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"prod"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8000"`

	Telegram struct {
		Token         string `envconfig:"BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
		APIID         int    `envconfig:"API_ID"`
		APIHash       string `envconfig:"API_HASH"`
		OwnerID       int64  `envconfig:"OWNER_ID"`
	} `envconfig:""`

	MTProto struct {
		SessionName string `envconfig:"MTPROTO_SESSION_NAME" default:"word_replacer"`
	} `envconfig:""`

	Database struct {
		URL  string `envconfig:"DATABASE_URL"`
		Name string `envconfig:"DATABASE_NAME" default:"word_replacer"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Batch struct {
		PageSize  int           `envconfig:"BATCH_PAGE_SIZE" default:"200"`
		PolicyTTL time.Duration `envconfig:"BATCH_POLICY_TTL" default:"0s"`
		LockTTL   time.Duration `envconfig:"BATCH_LOCK_TTL" default:"10m"`
	} `envconfig:""`

	Flood struct {
		MaxRetries int           `envconfig:"FLOOD_MAX_RETRIES" default:"1000"`
		MaxWait    time.Duration `envconfig:"FLOOD_MAX_WAIT" default:"0s"`
	} `envconfig:""`

	DialogTimeout time.Duration `envconfig:"DIALOG_TIMEOUT" default:"5m"`
}

// MaxPageSize - предел MTProto на один запрос истории.
const MaxPageSize = 200

// Load читает необязательный .env и загружает конфиг из окружения.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("чтение .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("не удалось загрузить конфиг: %w", err)
	}
	if cfg.Batch.PageSize <= 0 || cfg.Batch.PageSize > MaxPageSize {
		cfg.Batch.PageSize = MaxPageSize
	}
	return cfg, nil
}

// Validate проверяет обязательные параметры.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("BOT_TOKEN не задан"))
	}
	if c.Telegram.APIID == 0 {
		errs = append(errs, errors.New("API_ID не задан"))
	}
	if c.Telegram.APIHash == "" {
		errs = append(errs, errors.New("API_HASH не задан"))
	}
	if c.Telegram.OwnerID == 0 {
		errs = append(errs, errors.New("OWNER_ID не задан"))
	}
	if c.Batch.LockTTL <= 0 {
		errs = append(errs, errors.New("BATCH_LOCK_TTL должен быть положительным"))
	}
	if c.Flood.MaxRetries < 0 {
		errs = append(errs, errors.New("FLOOD_MAX_RETRIES не может быть отрицательным"))
	}
	return errors.Join(errs...)
}
