package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-word-replacer/internal/adapters/bot"
	"tg-word-replacer/internal/adapters/mtproto"
	"tg-word-replacer/internal/adapters/repo"
	"tg-word-replacer/internal/adapters/telegram"
	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/cache"
	"tg-word-replacer/internal/infra/config"
	"tg-word-replacer/internal/infra/db"
	httpinfra "tg-word-replacer/internal/infra/http"
	"tg-word-replacer/internal/infra/log"
	"tg-word-replacer/internal/infra/metrics"
	"tg-word-replacer/internal/usecase/batch"
	"tg-word-replacer/internal/usecase/dialog"
	"tg-word-replacer/internal/usecase/policy"
	"tg-word-replacer/internal/usecase/ratelimit"
	"tg-word-replacer/internal/usecase/users"
	"tg-word-replacer/migrations"
)

const webhookPath = "/bot/webhook"

// storage - всё, что бот хранит между перезапусками.
type storage interface {
	domain.PolicyRepo
	domain.UserRepo
	domain.ConfigRepo
	domain.BusinessMetricRepo
	mtproto.SessionRepo
}

var (
	_ storage = (*repo.Postgres)(nil)
	_ storage = (*repo.Memory)(nil)
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := log.NewLogger("prod")
		bootLogger.Fatal().Err(err).Msg("bot: конфиг не загружен")
	}
	logger := log.NewLogger(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("bot: некорректный конфиг")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStorage(ctx, cfg, logger)
	defer closeStore()

	locker, closeLocker := openLocker(ctx, cfg, logger)
	defer closeLocker()

	exec := ratelimit.NewExecutor(log.Component(logger, "ratelimit"), ratelimit.Options{
		MaxRetries: cfg.Flood.MaxRetries,
		MaxWait:    cfg.Flood.MaxWait,
	})

	mtLog := log.Component(logger, "mtproto")
	client := mtproto.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, cfg.Telegram.Token,
		mtproto.NewSessionStore(store, cfg.MTProto.SessionName), mtLog)
	clientErr := make(chan error, 1)
	go func() { clientErr <- client.Run(ctx) }()

	readyCtx, cancelReady := context.WithTimeout(ctx, time.Minute)
	readyErr := waitClient(readyCtx, client, clientErr)
	cancelReady()
	if readyErr != nil {
		logger.Fatal().Err(readyErr).Msg("bot: MTProto клиент не запустился")
	}
	gateway := mtproto.NewGateway(client.API(), mtLog)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось создать бота")
	}
	logger.Info().Str("username", botAPI.Self.UserName).Msg("bot: авторизован в Bot API")

	policyService := policy.NewService(store, store, cfg.Batch.PolicyTTL)
	usersService := users.NewService(store, store, gateway, telegram.NewProfiles(botAPI), store, cfg.Telegram.OwnerID)
	dialogs := dialog.NewMachine(policyService, cfg.DialogTimeout)
	batchService := batch.NewService(gateway, policyService, exec, locker, store, log.Component(logger, "batch"), batch.Options{
		PageSize: cfg.Batch.PageSize,
		LockTTL:  cfg.Batch.LockTTL,
	})

	h := bot.NewHandler(botAPI, log.Component(logger, "bot"), policyService, dialogs, batchService, usersService, exec)
	if err := h.RegisterCommands(ctx); err != nil {
		logger.Warn().Err(err).Msg("bot: меню команд не опубликовано")
	}

	srv := httpinfra.NewServer(log.Component(logger, "http"), registry)

	var updates <-chan tgbotapi.Update
	if cfg.Telegram.WebhookURL != "" {
		ch := make(chan tgbotapi.Update, botAPI.Buffer)
		srv.Router.With(httpinfra.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).
			Post(webhookPath, webhookHandler(ctx, ch))
		if err := setWebhook(botAPI, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal().Err(err).Msg("bot: не удалось установить webhook")
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("bot: режим webhook")
		updates = ch
	} else {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("bot: не удалось снять webhook")
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = botAPI.GetUpdatesChan(u)
		logger.Info().Msg("bot: режим long polling")
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("bot: HTTP сервер запущен")
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("bot: HTTP сервер остановлен")
		}
	}()

	go func() {
		if err := <-clientErr; err != nil {
			logger.Error().Err(err).Msg("bot: MTProto клиент остановлен")
			stop()
		}
	}()

	h.Serve(ctx, updates)

	logger.Info().Msg("bot: остановка")
	botAPI.StopReceivingUpdates()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (storage, func()) {
	if cfg.Database.URL == "" {
		logger.Warn().Msg("bot: DATABASE_URL не задан, данные хранятся в памяти")
		return repo.NewMemory(), func() {}
	}
	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: нет подключения к БД")
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		logger.Fatal().Err(err).Msg("bot: миграции не применены")
	}
	return repo.NewPostgres(pool), pool.Close
}

func migrate(pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()
	return migrations.Run(sqlDB)
}

func openLocker(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.JobLocker, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("bot: redis недоступен")
	}
	return cache.NewRedis(client), func() { _ = client.Close() }
}

func waitClient(ctx context.Context, client *mtproto.Client, clientErr <-chan error) error {
	ready := make(chan error, 1)
	go func() { ready <- client.WaitReady(ctx) }()
	select {
	case err := <-ready:
		return err
	case err := <-clientErr:
		if err == nil {
			err = errors.New("клиент завершился до авторизации")
		}
		return err
	}
}

// webhookHandler передаёт апдейты в Serve. Обработка не привязана к запросу:
// Telegram ждёт быстрый ответ, а пакетная обработка длится минуты.
func webhookHandler(ctx context.Context, updates chan<- tgbotapi.Update) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, err)
			return
		}
		select {
		case updates <- update:
			w.WriteHeader(http.StatusOK)
		case <-ctx.Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		case <-r.Context().Done():
		}
	}
}

func setWebhook(botAPI *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	_, err := botAPI.MakeRequest("setWebhook", params)
	return err
}
