package domain

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError сигнализирует, что удалённая сторона просит подождать перед повтором.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited for %s: %v", e.Wait, e.Err)
	}
	return fmt.Sprintf("rate limited for %s", e.Wait)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// AsRateLimit извлекает RateLimitError из цепочки ошибок.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
