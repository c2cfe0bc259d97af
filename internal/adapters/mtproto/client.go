// Package mtproto работает с каналами через MTProto от имени бота.
package mtproto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-word-replacer/internal/infra/metrics"
)

// SessionRepo хранит сериализованные MTProto-сессии.
type SessionRepo interface {
	LoadMTProtoSession(ctx context.Context, name string) ([]byte, error)
	StoreMTProtoSession(ctx context.Context, name string, data []byte) error
}

// SessionStore реализует session.Storage поверх SessionRepo.
type SessionStore struct {
	repo SessionRepo
	name string
}

// NewSessionStore создаёт хранилище сессии с указанным именем.
func NewSessionStore(repo SessionRepo, name string) *SessionStore {
	return &SessionStore{repo: repo, name: name}
}

// LoadSession возвращает session.ErrNotFound, если сессия ещё не сохранялась.
func (s *SessionStore) LoadSession(ctx context.Context) ([]byte, error) {
	data, err := s.repo.LoadMTProtoSession(ctx, s.name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, session.ErrNotFound
	}
	return data, nil
}

// StoreSession сохраняет сессию.
func (s *SessionStore) StoreSession(ctx context.Context, data []byte) error {
	return s.repo.StoreMTProtoSession(ctx, s.name, data)
}

var _ session.Storage = (*SessionStore)(nil)

// Client держит подключение gotd, авторизованное токеном бота.
type Client struct {
	client *telegram.Client
	token  string
	log    zerolog.Logger
	ready  chan struct{}
}

// NewClient создаёт клиента. Подключение устанавливается в Run.
func NewClient(apiID int, apiHash, botToken string, storage session.Storage, log zerolog.Logger) *Client {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{SessionStorage: storage})
	return &Client{
		client: client,
		token:  botToken,
		log:    log,
		ready:  make(chan struct{}),
	}
}

// Run подключается, авторизует бота и держит соединение до отмены ctx.
func (c *Client) Run(ctx context.Context) error {
	err := c.client.Run(ctx, func(ctx context.Context) error {
		start := time.Now()
		status, err := c.client.Auth().Status(ctx)
		metrics.ObserveNetworkRequest("mtproto", "auth_status", "self", start, err)
		if err != nil {
			return fmt.Errorf("статус авторизации: %w", err)
		}
		if !status.Authorized {
			start = time.Now()
			_, err := c.client.Auth().Bot(ctx, c.token)
			metrics.ObserveNetworkRequest("mtproto", "auth_bot", "self", start, err)
			if err != nil {
				return fmt.Errorf("авторизация бота: %w", err)
			}
			c.log.Info().Msg("MTProto: бот авторизован")
		}
		close(c.ready)
		<-ctx.Done()
		return ctx.Err()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// WaitReady блокируется до авторизации клиента.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// API возвращает сырой клиент tg. Вызовы допустимы только после WaitReady.
func (c *Client) API() *tg.Client {
	return c.client.API()
}
