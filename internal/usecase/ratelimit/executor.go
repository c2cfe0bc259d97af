// Package ratelimit повторяет изменяющие вызовы после FLOOD_WAIT.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/metrics"
)

// ErrRetriesExhausted возвращается, если лимит повторов исчерпан.
var ErrRetriesExhausted = errors.New("исчерпан лимит повторов после ограничения частоты")

// Call - отложенный изменяющий вызов без аргументов.
type Call func(ctx context.Context) error

// SleepFunc приостанавливает выполнение с учётом отмены контекста.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options настраивает Executor.
type Options struct {
	// MaxRetries ограничивает число повторов; 0 - без ограничения.
	MaxRetries int
	// MaxWait ограничивает одно ожидание; 0 - ждать столько, сколько просит сервер.
	MaxWait time.Duration
	Sleep   SleepFunc
}

// Executor выполняет вызов и повторяет его, пока сервер ограничивает частоту.
type Executor struct {
	log        zerolog.Logger
	maxRetries int
	maxWait    time.Duration
	sleep      SleepFunc
}

// NewExecutor создаёт исполнитель.
func NewExecutor(log zerolog.Logger, opts Options) *Executor {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return &Executor{
		log:        log,
		maxRetries: opts.MaxRetries,
		maxWait:    opts.MaxWait,
		sleep:      sleep,
	}
}

// Execute вызывает call. Ошибки, не связанные с ограничением частоты, возвращаются сразу.
func (e *Executor) Execute(ctx context.Context, call Call) error {
	var total time.Duration
	for attempt := 0; ; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}
		rl, ok := domain.AsRateLimit(err)
		if !ok {
			return err
		}
		if e.maxRetries > 0 && attempt >= e.maxRetries {
			return fmt.Errorf("%w (%d попыток): %w", ErrRetriesExhausted, attempt+1, err)
		}
		wait := rl.Wait
		if e.maxWait > 0 && wait > e.maxWait {
			wait = e.maxWait
		}
		total += wait
		metrics.ObserveFloodWait(wait)
		e.log.Warn().
			Dur("wait", wait).
			Dur("total_wait", total).
			Int("attempt", attempt+1).
			Msg("ограничение частоты, ждём перед повтором")
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// SleepContext ждёт d или отмены контекста.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
