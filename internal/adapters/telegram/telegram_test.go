package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"tg-word-replacer/internal/domain"
)

func TestWrapBotError(t *testing.T) {
	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}
	rl, ok := domain.AsRateLimit(WrapBotError(fmt.Errorf("send: %w", flood)))
	if !ok || rl.Wait != 7*time.Second {
		t.Fatalf("ожидали ожидание 7s, получили %+v", rl)
	}

	plain := &tgbotapi.Error{Code: 400, Message: "Bad Request"}
	if _, ok := domain.AsRateLimit(WrapBotError(plain)); ok {
		t.Fatal("ошибка без retry_after не должна считаться ограничением частоты")
	}
	if WrapBotError(nil) != nil {
		t.Fatal("nil должен остаться nil")
	}
}

type stubChats map[int64]tgbotapi.Chat

func (s stubChats) GetChat(cfg tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	chat, ok := s[cfg.ChatID]
	if !ok {
		return tgbotapi.Chat{}, errors.New("Bad Request: chat not found")
	}
	return chat, nil
}

func TestProfiles(t *testing.T) {
	p := NewProfiles(stubChats{5: {ID: 5, UserName: "alice", FirstName: "Alice", LastName: "A"}})
	got, err := p.Profile(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.TelegramProfile{ID: 5, Username: "alice", FirstName: "Alice", LastName: "A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("profile (-want +got):\n%s", diff)
	}
	if _, err := p.Profile(context.Background(), 6); err == nil {
		t.Fatal("ожидали ошибку")
	}
}
