package telegram

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/metrics"
)

// ChatGetter - часть Bot API, нужная для чтения профиля.
type ChatGetter interface {
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Profiles читает публичные профили пользователей через getChat.
type Profiles struct {
	bot ChatGetter
}

// NewProfiles создаёт источник профилей.
func NewProfiles(bot ChatGetter) *Profiles {
	return &Profiles{bot: bot}
}

// Profile возвращает профиль пользователя, который писал боту.
func (p *Profiles) Profile(_ context.Context, id int64) (domain.TelegramProfile, error) {
	start := time.Now()
	chat, err := p.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	metrics.ObserveNetworkRequest("telegram_bot", "get_chat", strconv.FormatInt(id, 10), start, err)
	if err != nil {
		return domain.TelegramProfile{}, WrapBotError(err)
	}
	return domain.TelegramProfile{
		ID:        chat.ID,
		Username:  chat.UserName,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
}
