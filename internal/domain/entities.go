package domain

import (
	"errors"
	"time"
)

// ErrNotFound возвращается хранилищем, если запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// RuleCategory описывает категорию правила переписывания.
type RuleCategory string

const (
	// CategoryReplace - замена слова на другое.
	CategoryReplace RuleCategory = "replace"
	// CategoryRemove - удаление слова из текста.
	CategoryRemove RuleCategory = "remove"
	// CategoryUsername - единственный username для подстановки вместо упоминаний.
	CategoryUsername RuleCategory = "username"
)

// Valid сообщает, известна ли категория.
func (c RuleCategory) Valid() bool {
	switch c {
	case CategoryReplace, CategoryRemove, CategoryUsername:
		return true
	}
	return false
}

// RewriteRule описывает одно правило замены.
type RewriteRule struct {
	Word        string
	Replacement string
}

// StoredRule - строка коллекции words в порядке добавления.
type StoredRule struct {
	Category    RuleCategory
	Word        string
	Replacement string
	Position    int64
}

// Policy - снимок всех правил, применяемых за один проход.
// Порядок проходов фиксирован: замены, удаления, username.
type Policy struct {
	Replacements []RewriteRule
	Removals     []string
	Username     string
}

// HasUsername сообщает, задано ли правило подстановки username.
func (p Policy) HasUsername() bool {
	return p.Username != ""
}

// IsEmpty возвращает true, если политика ничего не меняет.
func (p Policy) IsEmpty() bool {
	return len(p.Replacements) == 0 && len(p.Removals) == 0 && !p.HasUsername()
}

// User описывает запись реестра пользователей.
type User struct {
	ID        int64
	Banned    bool
	CreatedAt time.Time
}

// TelegramProfile содержит публичные данные пользователя из Telegram.
type TelegramProfile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName возвращает имя для упоминания.
func (p TelegramProfile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.Username != "":
		return "@" + p.Username
	}
	return "Deleted Account"
}

// Channel описывает канал, найденный через MTProto.
type Channel struct {
	// ID в формате Bot API, например -1001234567890.
	ID         int64
	RawID      int64
	AccessHash int64
	Title      string
}

// ChannelMessage - пост канала в виде, нужном пакетной обработке.
// Text и Caption уже приведены к HTML-разметке.
type ChannelMessage struct {
	ID         int
	Text       string
	Caption    string
	HasText    bool
	HasCaption bool
	Forwarded  bool
}

// IsEmpty сообщает, что в посте нет ни текста, ни подписи.
func (m ChannelMessage) IsEmpty() bool {
	return !m.HasText && !m.HasCaption
}

// Source возвращает текст поста или его подпись.
func (m ChannelMessage) Source() string {
	if m.HasText {
		return m.Text
	}
	return m.Caption
}
