package domain

import (
	"context"
	"time"
)

// PolicyRepo хранит правила в коллекции words.
type PolicyRepo interface {
	ListRules(ctx context.Context, category RuleCategory) ([]StoredRule, error)
	ListAllRules(ctx context.Context) ([]StoredRule, error)
	UpsertRule(ctx context.Context, category RuleCategory, word, replacement string) error
	DeleteRule(ctx context.Context, category RuleCategory, word string) error
	// ReplaceUsername атомарно заменяет единственное правило username.
	ReplaceUsername(ctx context.Context, username string) error
	ClearCategory(ctx context.Context, category RuleCategory) error
}

// UserRepo управляет реестром пользователей.
type UserRepo interface {
	// CreateIfAbsent создаёт пользователя и сообщает, была ли запись новой.
	CreateIfAbsent(ctx context.Context, id int64) (bool, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
}

// ConfigRepo хранит произвольные настройки формата {key, value}.
type ConfigRepo interface {
	// GetConfig декодирует значение в dst и возвращает false, если ключа нет.
	GetConfig(ctx context.Context, key string, dst any) (bool, error)
	SetConfig(ctx context.Context, key string, value any) error
}

// ChannelGateway выполняет операции с каналом через MTProto.
type ChannelGateway interface {
	ResolveChannel(ctx context.Context, channelID int64) (Channel, error)
	// Probe отправляет служебное сообщение и возвращает его идентификатор.
	Probe(ctx context.Context, channel Channel) (int, error)
	FetchMessages(ctx context.Context, channel Channel, ids []int) ([]ChannelMessage, error)
	EditText(ctx context.Context, channel Channel, messageID int, html string) error
	EditCaption(ctx context.Context, channel Channel, messageID int, html string) error
	DeleteMessages(ctx context.Context, channel Channel, ids []int) error
}

// UserResolver находит пользователя Telegram по username.
type UserResolver interface {
	ResolveUsername(ctx context.Context, username string) (TelegramProfile, error)
}

// JobLocker выдаёт аренду на эксклюзивный запуск задачи.
type JobLocker interface {
	// Acquire возвращает false без ошибки, если аренда уже занята.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// Lease - удерживаемая аренда.
type Lease interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}
