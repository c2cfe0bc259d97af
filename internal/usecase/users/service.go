// Package users ведёт реестр пользователей и список администраторов.
package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"tg-word-replacer/internal/domain"
)

// ConfigKeyAdmins - ключ коллекции config со списком администраторов.
const ConfigKeyAdmins = "ADMINS"

var (
	ErrUserNotFound   = errors.New("пользователь не найден")
	ErrInvalidUserRef = errors.New("некорректный id или username")
)

// ProfileFetcher возвращает публичный профиль пользователя Telegram.
type ProfileFetcher interface {
	Profile(ctx context.Context, id int64) (domain.TelegramProfile, error)
}

// Service управляет реестром пользователей.
type Service struct {
	repo     domain.UserRepo
	config   domain.ConfigRepo
	resolver domain.UserResolver
	profiles ProfileFetcher
	metrics  domain.BusinessMetricRepo
	ownerID  int64
}

// NewService создаёт сервис реестра.
func NewService(repo domain.UserRepo, config domain.ConfigRepo, resolver domain.UserResolver, profiles ProfileFetcher, metrics domain.BusinessMetricRepo, ownerID int64) *Service {
	return &Service{
		repo:     repo,
		config:   config,
		resolver: resolver,
		profiles: profiles,
		metrics:  metrics,
		ownerID:  ownerID,
	}
}

// OwnerID возвращает идентификатор владельца бота.
func (s *Service) OwnerID() int64 {
	return s.ownerID
}

// Register добавляет пользователя при первом /start. Повторный вызов ничего не меняет.
func (s *Service) Register(ctx context.Context, id int64) (bool, error) {
	created, err := s.repo.CreateIfAbsent(ctx, id)
	if err != nil {
		return false, fmt.Errorf("регистрация пользователя: %w", err)
	}
	if created && s.metrics != nil {
		userID := id
		_ = s.metrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:  domain.BusinessMetricEventUserRegistered,
			UserID: &userID,
		})
	}
	return created, nil
}

// Details описывает результат /user.
type Details struct {
	User    domain.User
	Profile domain.TelegramProfile
	// HasProfile ложно, если профиль Telegram получить не удалось.
	HasProfile bool
}

// Lookup находит пользователя по числовому id или @username.
func (s *Service) Lookup(ctx context.Context, ref string) (Details, error) {
	id, err := s.ResolveID(ctx, ref)
	if err != nil {
		return Details{}, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return Details{}, ErrUserNotFound
	}
	if err != nil {
		return Details{}, fmt.Errorf("получение пользователя: %w", err)
	}
	details := Details{User: user}
	if s.profiles != nil {
		if profile, err := s.profiles.Profile(ctx, id); err == nil {
			details.Profile = profile
			details.HasProfile = true
		}
	}
	return details, nil
}

// ResolveID возвращает id пользователя по числовому id или @username.
func (s *Service) ResolveID(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, ErrInvalidUserRef
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	username := strings.TrimPrefix(ref, "@")
	if username == "" || s.resolver == nil {
		return 0, ErrInvalidUserRef
	}
	profile, err := s.resolver.ResolveUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidUserRef, err)
	}
	return profile.ID, nil
}

// Entry - строка списка /users.
type Entry struct {
	User    domain.User
	Profile domain.TelegramProfile
}

// List возвращает всех пользователей реестра с профилями, где их удалось получить.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("список пользователей: %w", err)
	}
	entries := make([]Entry, 0, len(all))
	for _, user := range all {
		entry := Entry{User: user, Profile: domain.TelegramProfile{ID: user.ID}}
		if s.profiles != nil {
			if profile, err := s.profiles.Profile(ctx, user.ID); err == nil {
				entry.Profile = profile
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SetBanned меняет флаг блокировки. Владельца заблокировать нельзя.
func (s *Service) SetBanned(ctx context.Context, id int64, banned bool) error {
	if banned && id == s.ownerID {
		return fmt.Errorf("владельца нельзя заблокировать")
	}
	if err := s.repo.SetBanned(ctx, id, banned); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("обновление пользователя: %w", err)
	}
	return nil
}

// Role вычисляет роль пользователя.
func (s *Service) Role(ctx context.Context, id int64) (domain.UserRole, error) {
	if id == s.ownerID {
		return domain.UserRoleOwner, nil
	}
	admins, err := s.Admins(ctx)
	if err != nil {
		return domain.UserRoleUser, err
	}
	var banned bool
	user, err := s.repo.GetUser(ctx, id)
	switch {
	case err == nil:
		banned = user.Banned
	case !errors.Is(err, domain.ErrNotFound):
		return domain.UserRoleUser, fmt.Errorf("получение пользователя: %w", err)
	}
	return domain.RoleFor(id, s.ownerID, admins, banned), nil
}

// Admins возвращает список администраторов из коллекции config.
func (s *Service) Admins(ctx context.Context) ([]int64, error) {
	var admins []int64
	if _, err := s.config.GetConfig(ctx, ConfigKeyAdmins, &admins); err != nil {
		return nil, fmt.Errorf("чтение администраторов: %w", err)
	}
	return admins, nil
}

// AddAdmin добавляет администратора и возвращает false, если он уже был в списке.
func (s *Service) AddAdmin(ctx context.Context, id int64) (bool, error) {
	admins, err := s.Admins(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(admins, id) {
		return false, nil
	}
	admins = append(admins, id)
	if err := s.config.SetConfig(ctx, ConfigKeyAdmins, admins); err != nil {
		return false, fmt.Errorf("сохранение администраторов: %w", err)
	}
	return true, nil
}

// RemoveAdmin убирает администратора и возвращает false, если его не было в списке.
func (s *Service) RemoveAdmin(ctx context.Context, id int64) (bool, error) {
	admins, err := s.Admins(ctx)
	if err != nil {
		return false, err
	}
	idx := slices.Index(admins, id)
	if idx < 0 {
		return false, nil
	}
	admins = slices.Delete(admins, idx, idx+1)
	if err := s.config.SetConfig(ctx, ConfigKeyAdmins, admins); err != nil {
		return false, fmt.Errorf("сохранение администраторов: %w", err)
	}
	return true, nil
}
