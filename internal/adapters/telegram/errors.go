package telegram

import (
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-word-replacer/internal/domain"
)

// WrapBotError переводит ответ Bot API с retry_after в domain.RateLimitError.
func WrapBotError(err error) error {
	if err == nil {
		return nil
	}
	if retry := retryAfter(err); retry > 0 {
		return &domain.RateLimitError{Wait: time.Duration(retry) * time.Second, Err: err}
	}
	return err
}

func retryAfter(err error) int {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.RetryAfter
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val.RetryAfter
	}
	return 0
}
