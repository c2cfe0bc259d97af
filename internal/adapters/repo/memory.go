package repo

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gotd/td/session"

	"tg-word-replacer/internal/domain"
)

// Memory хранит все коллекции в памяти процесса. Используется без DATABASE_URL и в тестах.
type Memory struct {
	mu       sync.Mutex
	seq      int64
	rules    []domain.StoredRule
	users    map[int64]domain.User
	config   map[string][]byte
	sessions map[string][]byte
	events   []domain.BusinessMetric
}

var (
	_ domain.PolicyRepo         = (*Memory)(nil)
	_ domain.UserRepo           = (*Memory)(nil)
	_ domain.ConfigRepo         = (*Memory)(nil)
	_ domain.BusinessMetricRepo = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[int64]domain.User),
		config:   make(map[string][]byte),
		sessions: make(map[string][]byte),
	}
}

// ListRules реализует domain.PolicyRepo.
func (m *Memory) ListRules(_ context.Context, category domain.RuleCategory) ([]domain.StoredRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredRule
	for _, r := range m.rules {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAllRules реализует domain.PolicyRepo.
func (m *Memory) ListAllRules(_ context.Context) ([]domain.StoredRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rules), nil
}

// UpsertRule реализует domain.PolicyRepo.
func (m *Memory) UpsertRule(_ context.Context, category domain.RuleCategory, word, replacement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.Category == category && r.Word == word {
			m.rules[i].Replacement = replacement
			return nil
		}
	}
	m.seq++
	m.rules = append(m.rules, domain.StoredRule{Category: category, Word: word, Replacement: replacement, Position: m.seq})
	return nil
}

// DeleteRule реализует domain.PolicyRepo.
func (m *Memory) DeleteRule(_ context.Context, category domain.RuleCategory, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = slices.DeleteFunc(m.rules, func(r domain.StoredRule) bool {
		return r.Category == category && r.Word == word
	})
	return nil
}

// ReplaceUsername реализует domain.PolicyRepo.
func (m *Memory) ReplaceUsername(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = slices.DeleteFunc(m.rules, func(r domain.StoredRule) bool {
		return r.Category == domain.CategoryUsername
	})
	m.seq++
	m.rules = append(m.rules, domain.StoredRule{Category: domain.CategoryUsername, Word: username, Position: m.seq})
	return nil
}

// ClearCategory реализует domain.PolicyRepo.
func (m *Memory) ClearCategory(_ context.Context, category domain.RuleCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = slices.DeleteFunc(m.rules, func(r domain.StoredRule) bool {
		return r.Category == category
	})
	return nil
}

// CreateIfAbsent реализует domain.UserRepo.
func (m *Memory) CreateIfAbsent(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; ok {
		return false, nil
	}
	m.users[id] = domain.User{ID: id, CreatedAt: time.Now().UTC()}
	return true, nil
}

// GetUser реализует domain.UserRepo.
func (m *Memory) GetUser(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

// ListUsers реализует domain.UserRepo.
func (m *Memory) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// SetBanned реализует domain.UserRepo.
func (m *Memory) SetBanned(_ context.Context, id int64, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.Banned = banned
	m.users[id] = user
	return nil
}

// GetConfig реализует domain.ConfigRepo.
func (m *Memory) GetConfig(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.config[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

// SetConfig реализует domain.ConfigRepo.
func (m *Memory) SetConfig(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.config[key] = raw
	m.mu.Unlock()
	return nil
}

// RecordBusinessMetric реализует domain.BusinessMetricRepo.
func (m *Memory) RecordBusinessMetric(_ context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.events = append(m.events, metric)
	m.mu.Unlock()
	return nil
}

// Events возвращает сохранённые события.
func (m *Memory) Events() []domain.BusinessMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// LoadMTProtoSession загружает сохранённую MTProto-сессию.
func (m *Memory) LoadMTProtoSession(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sessions[name]
	if !ok {
		return nil, session.ErrNotFound
	}
	return slices.Clone(data), nil
}

// StoreMTProtoSession сохраняет MTProto-сессию.
func (m *Memory) StoreMTProtoSession(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	m.sessions[name] = slices.Clone(data)
	m.mu.Unlock()
	return nil
}
