package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PolicyRepo         = (*Postgres)(nil)
	_ domain.UserRepo           = (*Postgres)(nil)
	_ domain.ConfigRepo         = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListRules реализует domain.PolicyRepo.
func (p *Postgres) ListRules(ctx context.Context, category domain.RuleCategory) ([]domain.StoredRule, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, category, word, replacement
FROM words
WHERE category = $1
ORDER BY id
`, string(category))
	metrics.ObserveNetworkRequest("postgres", "words_list", "words", start, err)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// ListAllRules реализует domain.PolicyRepo.
func (p *Postgres) ListAllRules(ctx context.Context) ([]domain.StoredRule, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, category, word, replacement FROM words ORDER BY id`)
	metrics.ObserveNetworkRequest("postgres", "words_list_all", "words", start, err)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]domain.StoredRule, error) {
	defer rows.Close()
	var rules []domain.StoredRule
	for rows.Next() {
		var (
			rule     domain.StoredRule
			category string
		)
		if err := rows.Scan(&rule.Position, &category, &rule.Word, &rule.Replacement); err != nil {
			return nil, err
		}
		rule.Category = domain.RuleCategory(category)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertRule реализует domain.PolicyRepo.
func (p *Postgres) UpsertRule(ctx context.Context, category domain.RuleCategory, word, replacement string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO words (category, word, replacement)
VALUES ($1, $2, $3)
ON CONFLICT (category, word) DO UPDATE SET replacement = EXCLUDED.replacement, updated_at = now()
`, string(category), word, replacement)
	metrics.ObserveNetworkRequest("postgres", "words_upsert", "words", start, err)
	return err
}

// DeleteRule реализует domain.PolicyRepo.
func (p *Postgres) DeleteRule(ctx context.Context, category domain.RuleCategory, word string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM words WHERE category = $1 AND word = $2`, string(category), word)
	metrics.ObserveNetworkRequest("postgres", "words_delete", "words", start, err)
	return err
}

// ReplaceUsername реализует domain.PolicyRepo.
func (p *Postgres) ReplaceUsername(ctx context.Context, username string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "words", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM words WHERE category = $1`, string(domain.CategoryUsername))
	metrics.ObserveNetworkRequest("postgres", "words_delete", "words", start, err)
	if err != nil {
		return err
	}
	start = time.Now()
	_, err = tx.Exec(ctx, `INSERT INTO words (category, word, replacement) VALUES ($1, $2, '')`, string(domain.CategoryUsername), username)
	metrics.ObserveNetworkRequest("postgres", "words_insert", "words", start, err)
	if err != nil {
		return err
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "words", start, err)
	return err
}

// ClearCategory реализует domain.PolicyRepo.
func (p *Postgres) ClearCategory(ctx context.Context, category domain.RuleCategory) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM words WHERE category = $1`, string(category))
	metrics.ObserveNetworkRequest("postgres", "words_clear", "words", start, err)
	return err
}

// CreateIfAbsent реализует domain.UserRepo.
func (p *Postgres) CreateIfAbsent(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `INSERT INTO users (id, banned) VALUES ($1, false) ON CONFLICT (id) DO NOTHING`, id)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetUser реализует domain.UserRepo.
func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, banned, created_at FROM users WHERE id = $1`, id).Scan(&user.ID, &user.Banned, &user.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, err
}

// ListUsers реализует domain.UserRepo.
func (p *Postgres) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, banned, created_at FROM users ORDER BY created_at, id`)
	metrics.ObserveNetworkRequest("postgres", "users_list", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Banned, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetBanned реализует domain.UserRepo.
func (p *Postgres) SetBanned(ctx context.Context, id int64, banned bool) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE users SET banned = $2 WHERE id = $1`, id, banned)
	metrics.ObserveNetworkRequest("postgres", "users_set_banned", "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetConfig реализует domain.ConfigRepo.
func (p *Postgres) GetConfig(ctx context.Context, key string, dst any) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var raw []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "config_get", "config", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode config %s: %w", key, err)
	}
	return true, nil
}

// SetConfig реализует domain.ConfigRepo.
func (p *Postgres) SetConfig(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO config (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, key, payload)
	metrics.ObserveNetworkRequest("postgres", "config_set", "config", start, err)
	return err
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var userID sql.NullInt64
	if metric.UserID != nil {
		userID = sql.NullInt64{Int64: *metric.UserID, Valid: true}
	}
	var channelID sql.NullInt64
	if metric.ChannelID != nil {
		channelID = sql.NullInt64{Int64: *metric.ChannelID, Valid: true}
	}
	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, channel_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, userID, channelID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// LoadMTProtoSession загружает сохранённую MTProto-сессию.
func (p *Postgres) LoadMTProtoSession(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var data []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT data FROM mtproto_sessions WHERE name = $1`, name).Scan(&data)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_load", "mtproto_sessions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// StoreMTProtoSession сохраняет MTProto-сессию.
func (p *Postgres) StoreMTProtoSession(ctx context.Context, name string, data []byte) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO mtproto_sessions (name, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
`, name, data)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_store", "mtproto_sessions", start, err)
	return err
}
