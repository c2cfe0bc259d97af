package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"tg-word-replacer/internal/infra/config"
	"tg-word-replacer/internal/infra/db"
	"tg-word-replacer/migrations"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("migrate: конфиг не загружен")
	}
	if cfg.Database.URL == "" {
		log.Fatal().Msg("migrate: DATABASE_URL не задан")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate: нет подключения к БД")
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	if err := migrations.Prepare(); err != nil {
		log.Fatal().Err(err).Msg("migrate: goose не настроен")
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = goose.Up(sqlDB, ".")
	case "up-one":
		err = goose.UpByOne(sqlDB, ".")
	case "down":
		err = goose.Down(sqlDB, ".")
	case "status":
		err = goose.Status(sqlDB, ".")
	case "version":
		err = goose.Version(sqlDB, ".")
	case "reset":
		err = goose.Reset(sqlDB, ".")
	default:
		log.Fatal().Str("command", cmd).Msg("migrate: неизвестная команда")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("migrate: команда завершилась ошибкой")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
	fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
	fmt.Fprintln(os.Stderr, "  down        Roll back one version")
	fmt.Fprintln(os.Stderr, "  status      Show migration status")
	fmt.Fprintln(os.Stderr, "  version     Show current version")
	fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Connection is taken from DATABASE_URL and DATABASE_NAME.")
}
