package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"tg-word-replacer/internal/adapters/mtproto"
	"tg-word-replacer/internal/adapters/repo"
	"tg-word-replacer/internal/infra/config"
	"tg-word-replacer/internal/infra/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: конфиг не загружен")
	}

	var (
		filePath    string
		sessionName string
	)
	flag.StringVar(&filePath, "file", "", "Path to MTProto session file (gotd JSON, Telethon JSON export or StringSession)")
	flag.StringVar(&sessionName, "name", cfg.MTProto.SessionName, "Name of the MTProto session")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("mtproto-importer: path to session file is required (-file)")
	}
	if cfg.Database.URL == "" {
		log.Fatal().Msg("mtproto-importer: DATABASE_URL environment variable is required")
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: failed to read session file")
	}
	sessionData, format, err := mtproto.NormalizeSession(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: unsupported MTProto session format")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: failed to connect to database")
	}
	defer pool.Close()

	if err := repo.NewPostgres(pool).StoreMTProtoSession(ctx, sessionName, sessionData); err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: failed to store session in database")
	}

	fmt.Printf("Stored MTProto session %q (%d bytes, source format %s) in database\n", sessionName, len(sessionData), format)
}
