// Package policy управляет правилами переписывания текста.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tg-word-replacer/internal/domain"
)

var (
	ErrEmptyWord     = errors.New("слово не может быть пустым")
	ErrEmptyUsername = errors.New("username не может быть пустым")
	ErrInvalidIndex  = errors.New("некорректный номер слова")
)

// Service хранит и отдаёт правила замены, удаления и username.
type Service struct {
	repo    domain.PolicyRepo
	metrics domain.BusinessMetricRepo
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	cached   domain.Policy
	cachedAt time.Time
	valid    bool
}

// NewService создаёт сервис. ttl задаёт допустимую устарелость снимка политики:
// при нуле каждый вызов Current читает хранилище заново.
func NewService(repo domain.PolicyRepo, metrics domain.BusinessMetricRepo, ttl time.Duration) *Service {
	return &Service{repo: repo, metrics: metrics, ttl: ttl, now: time.Now}
}

// Replacements возвращает пары замены в порядке добавления.
func (s *Service) Replacements(ctx context.Context) ([]domain.RewriteRule, error) {
	rows, err := s.repo.ListRules(ctx, domain.CategoryReplace)
	if err != nil {
		return nil, fmt.Errorf("чтение замен: %w", err)
	}
	rules := make([]domain.RewriteRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, domain.RewriteRule{Word: row.Word, Replacement: row.Replacement})
	}
	return rules, nil
}

// Removals возвращает удаляемые слова в порядке добавления.
func (s *Service) Removals(ctx context.Context) ([]string, error) {
	rows, err := s.repo.ListRules(ctx, domain.CategoryRemove)
	if err != nil {
		return nil, fmt.Errorf("чтение удалений: %w", err)
	}
	words := make([]string, 0, len(rows))
	for _, row := range rows {
		words = append(words, row.Word)
	}
	return words, nil
}

// Username возвращает текущее правило username.
func (s *Service) Username(ctx context.Context) (string, bool, error) {
	rows, err := s.repo.ListRules(ctx, domain.CategoryUsername)
	if err != nil {
		return "", false, fmt.Errorf("чтение username: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[len(rows)-1].Word, true, nil
}

// Snapshot читает все правила одним запросом.
func (s *Service) Snapshot(ctx context.Context) (domain.Policy, error) {
	rows, err := s.repo.ListAllRules(ctx)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("чтение политики: %w", err)
	}
	return buildPolicy(rows), nil
}

// Current возвращает политику с учётом настроенной устарелости.
func (s *Service) Current(ctx context.Context) (domain.Policy, error) {
	if s.ttl <= 0 {
		return s.Snapshot(ctx)
	}
	s.mu.Lock()
	if s.valid && s.now().Sub(s.cachedAt) < s.ttl {
		p := s.cached
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	p, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Policy{}, err
	}
	s.mu.Lock()
	s.cached = p
	s.cachedAt = s.now()
	s.valid = true
	s.mu.Unlock()
	return p, nil
}

// UpsertReplacement добавляет или обновляет замену. Слово убирается из списка удалений.
func (s *Service) UpsertReplacement(ctx context.Context, word, replacement string) error {
	if strings.TrimSpace(word) == "" {
		return ErrEmptyWord
	}
	if err := s.repo.DeleteRule(ctx, domain.CategoryRemove, word); err != nil {
		return fmt.Errorf("удаление конфликтующего правила: %w", err)
	}
	if err := s.repo.UpsertRule(ctx, domain.CategoryReplace, word, replacement); err != nil {
		return fmt.Errorf("сохранение замены: %w", err)
	}
	s.changed(ctx, "upsert", domain.CategoryReplace, word)
	return nil
}

// UpsertRemoval добавляет слово для удаления. Замена для этого слова удаляется.
func (s *Service) UpsertRemoval(ctx context.Context, word string) error {
	if strings.TrimSpace(word) == "" {
		return ErrEmptyWord
	}
	if err := s.repo.DeleteRule(ctx, domain.CategoryReplace, word); err != nil {
		return fmt.Errorf("удаление конфликтующего правила: %w", err)
	}
	if err := s.repo.UpsertRule(ctx, domain.CategoryRemove, word, ""); err != nil {
		return fmt.Errorf("сохранение удаления: %w", err)
	}
	s.changed(ctx, "upsert", domain.CategoryRemove, word)
	return nil
}

// SetUsername задаёт username для подстановки. Ведущий @ отбрасывается.
func (s *Service) SetUsername(ctx context.Context, username string) error {
	cleaned := NormalizeUsername(username)
	if cleaned == "" {
		return ErrEmptyUsername
	}
	if err := s.repo.ReplaceUsername(ctx, cleaned); err != nil {
		return fmt.Errorf("сохранение username: %w", err)
	}
	s.changed(ctx, "upsert", domain.CategoryUsername, cleaned)
	return nil
}

// DeleteReplacement удаляет замену.
func (s *Service) DeleteReplacement(ctx context.Context, word string) error {
	if err := s.repo.DeleteRule(ctx, domain.CategoryReplace, word); err != nil {
		return fmt.Errorf("удаление замены: %w", err)
	}
	s.changed(ctx, "delete", domain.CategoryReplace, word)
	return nil
}

// DeleteRemoval удаляет слово из списка удалений.
func (s *Service) DeleteRemoval(ctx context.Context, word string) error {
	if err := s.repo.DeleteRule(ctx, domain.CategoryRemove, word); err != nil {
		return fmt.Errorf("удаление слова: %w", err)
	}
	s.changed(ctx, "delete", domain.CategoryRemove, word)
	return nil
}

// ClearUsername снимает правило username.
func (s *Service) ClearUsername(ctx context.Context) error {
	if err := s.repo.ClearCategory(ctx, domain.CategoryUsername); err != nil {
		return fmt.Errorf("удаление username: %w", err)
	}
	s.changed(ctx, "delete", domain.CategoryUsername, "")
	return nil
}

// Words возвращает слова категории в порядке добавления; используется меню удаления.
func (s *Service) Words(ctx context.Context, category domain.RuleCategory) ([]string, error) {
	rows, err := s.repo.ListRules(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("чтение категории %s: %w", category, err)
	}
	words := make([]string, 0, len(rows))
	for _, row := range rows {
		words = append(words, row.Word)
	}
	return words, nil
}

// DeleteByIndex удаляет слово категории по номеру, начиная с 1, и возвращает его.
func (s *Service) DeleteByIndex(ctx context.Context, category domain.RuleCategory, index int) (string, error) {
	words, err := s.Words(ctx, category)
	if err != nil {
		return "", err
	}
	if index < 1 || index > len(words) {
		return "", ErrInvalidIndex
	}
	word := words[index-1]
	switch category {
	case domain.CategoryReplace:
		err = s.DeleteReplacement(ctx, word)
	case domain.CategoryRemove:
		err = s.DeleteRemoval(ctx, word)
	default:
		return "", fmt.Errorf("категория %s не поддерживает удаление по номеру", category)
	}
	if err != nil {
		return "", err
	}
	return word, nil
}

func (s *Service) changed(ctx context.Context, action string, category domain.RuleCategory, word string) {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
	if s.metrics == nil {
		return
	}
	_ = s.metrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event: domain.BusinessMetricEventPolicyChanged,
		Metadata: map[string]any{
			"action":   action,
			"category": string(category),
			"word":     word,
		},
	})
}

// NormalizeUsername убирает пробелы и ведущий @.
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

func buildPolicy(rows []domain.StoredRule) domain.Policy {
	var p domain.Policy
	for _, row := range rows {
		switch row.Category {
		case domain.CategoryReplace:
			p.Replacements = append(p.Replacements, domain.RewriteRule{Word: row.Word, Replacement: row.Replacement})
		case domain.CategoryRemove:
			p.Removals = append(p.Removals, row.Word)
		case domain.CategoryUsername:
			p.Username = row.Word
		}
	}
	return p
}
