// Package batch переписывает историю канала по текущим правилам.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/metrics"
	"tg-word-replacer/internal/usecase/ratelimit"
	"tg-word-replacer/internal/usecase/rewrite"
)

var (
	ErrUsage          = errors.New("не указан идентификатор канала")
	ErrInvalidChannel = errors.New("некорректный идентификатор канала")
	ErrJobRunning     = errors.New("обработка канала уже запущена")
)

// Тексты статусного сообщения.
const (
	StartText = "🔄 Processing messages..."
	// EmptyPlaceholder подставляется, если из текста удалено всё: пустую правку Telegram отклоняет.
	EmptyPlaceholder = "."
)

// MaxPageSize - предел MTProto на один запрос истории.
const MaxPageSize = 200

// PolicySource отдаёт актуальный снимок правил.
type PolicySource interface {
	Current(ctx context.Context) (domain.Policy, error)
}

// Executor выполняет изменяющий вызов с повторами после FLOOD_WAIT.
type Executor interface {
	Execute(ctx context.Context, call ratelimit.Call) error
}

// Reporter показывает прогресс в одном статусном сообщении.
type Reporter interface {
	Start(ctx context.Context, text string) error
	Finish(ctx context.Context, text string) error
}

// Options настраивает сервис.
type Options struct {
	PageSize int
	LockTTL  time.Duration
}

// Service запускает пакетную обработку каналов.
type Service struct {
	gateway  domain.ChannelGateway
	policy   PolicySource
	exec     Executor
	locker   domain.JobLocker
	metrics  domain.BusinessMetricRepo
	log      zerolog.Logger
	pageSize int
	lockTTL  time.Duration
	now      func() time.Time
}

// NewService создаёт сервис пакетной обработки.
func NewService(gateway domain.ChannelGateway, policy PolicySource, exec Executor, locker domain.JobLocker, metrics domain.BusinessMetricRepo, log zerolog.Logger, opts Options) *Service {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Service{
		gateway:  gateway,
		policy:   policy,
		exec:     exec,
		locker:   locker,
		metrics:  metrics,
		log:      log,
		pageSize: pageSize,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// ParseChannelID разбирает аргумент команды /batch.
func ParseChannelID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrUsage
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidChannel
	}
	return id, nil
}

// LockKey возвращает ключ аренды канала.
func LockKey(channelID int64) string {
	return fmt.Sprintf("batch:lock:%d", channelID)
}

// CompletedText формирует итоговое сообщение.
func CompletedText(job domain.BatchJob) string {
	return fmt.Sprintf("✅ Batch processing completed.\nEdited: %d\nSkipped: %d\nFailed: %d",
		job.EditedCount, job.SkippedCount, job.ErrorCount)
}

// FailedText формирует сообщение об аварийном завершении.
func FailedText(err error) string {
	return "❌ An error occurred: " + err.Error()
}

// Run обрабатывает все сообщения канала до служебного сообщения-пробы.
// Ошибки разбора и занятая аренда возвращаются до обращения к reporter.
func (s *Service) Run(ctx context.Context, rawChannelID string, reporter Reporter) (domain.BatchJob, error) {
	channelID, err := ParseChannelID(rawChannelID)
	if err != nil {
		return domain.BatchJob{}, err
	}
	job := domain.BatchJob{ChannelID: channelID}

	lease, ok, err := s.locker.Acquire(ctx, LockKey(channelID), s.lockTTL)
	if err != nil {
		return job, fmt.Errorf("аренда канала: %w", err)
	}
	if !ok {
		return job, ErrJobRunning
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Int64("channel_id", channelID).Msg("не удалось снять аренду")
		}
	}()
	stop := s.keepAlive(ctx, lease, channelID)
	defer stop()

	if err := reporter.Start(ctx, StartText); err != nil {
		return job, fmt.Errorf("статусное сообщение: %w", err)
	}

	job.StartedAt = s.now()
	logger := s.log.With().Int64("channel_id", channelID).Logger()
	logger.Info().Msg("пакетная обработка запущена")

	runErr := s.process(ctx, &job, logger)
	job.FinishedAt = s.now()

	if runErr != nil {
		logger.Error().Err(runErr).Int("processed", job.Processed()).Msg("пакетная обработка прервана")
		metrics.ObserveBatchJob("failed", job.Duration())
		s.record(ctx, domain.BusinessMetricEventBatchFailed, job, runErr)
		if err := reporter.Finish(context.WithoutCancel(ctx), FailedText(runErr)); err != nil {
			logger.Warn().Err(err).Msg("не удалось обновить статус")
		}
		return job, runErr
	}

	logger.Info().
		Int("edited", job.EditedCount).
		Int("skipped", job.SkippedCount).
		Int("failed", job.ErrorCount).
		Dur("duration", job.Duration()).
		Msg("пакетная обработка завершена")
	metrics.ObserveBatchJob("completed", job.Duration())
	s.record(ctx, domain.BusinessMetricEventBatchCompleted, job, nil)
	if err := reporter.Finish(ctx, CompletedText(job)); err != nil {
		logger.Warn().Err(err).Msg("не удалось обновить статус")
	}
	return job, nil
}

func (s *Service) process(ctx context.Context, job *domain.BatchJob, logger zerolog.Logger) error {
	channel, err := s.gateway.ResolveChannel(ctx, job.ChannelID)
	if err != nil {
		return fmt.Errorf("поиск канала: %w", err)
	}

	var probeID int
	err = s.exec.Execute(ctx, func(ctx context.Context) error {
		id, err := s.gateway.Probe(ctx, channel)
		probeID = id
		return err
	})
	if err != nil {
		return fmt.Errorf("отправка пробы: %w", err)
	}
	job.UpperBound = probeID
	defer func() {
		if err := s.gateway.DeleteMessages(context.WithoutCancel(ctx), channel, []int{probeID}); err != nil {
			logger.Warn().Err(err).Int("message_id", probeID).Msg("не удалось удалить пробу")
		}
	}()

	for start := 1; start < job.UpperBound; start += s.pageSize {
		end := min(start+s.pageSize, job.UpperBound)
		ids := make([]int, 0, end-start)
		for id := start; id < end; id++ {
			ids = append(ids, id)
		}

		var page []domain.ChannelMessage
		err := s.exec.Execute(ctx, func(ctx context.Context) error {
			msgs, err := s.gateway.FetchMessages(ctx, channel, ids)
			page = msgs
			return err
		})
		if err != nil {
			return fmt.Errorf("загрузка сообщений %d-%d: %w", start, end-1, err)
		}

		// Удалённые сообщения сервер может не вернуть вовсе.
		if missing := len(ids) - len(page); missing > 0 {
			job.SkippedCount += missing
		}
		for _, msg := range page {
			s.handle(ctx, channel, msg, job, logger)
		}
		job.Cursor = end - 1
		logger.Debug().Int("cursor", job.Cursor).Int("upper_bound", job.UpperBound).Msg("страница обработана")

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) handle(ctx context.Context, channel domain.Channel, msg domain.ChannelMessage, job *domain.BatchJob, logger zerolog.Logger) {
	if msg.IsEmpty() || msg.Forwarded {
		s.skip(job)
		return
	}

	policy, err := s.policy.Current(ctx)
	if err != nil {
		s.fail(job, logger, msg.ID, fmt.Errorf("чтение правил: %w", err))
		return
	}
	source := msg.Source()
	out, changed := rewrite.Changed(source, policy)
	if !changed {
		s.skip(job)
		return
	}

	var edit ratelimit.Call
	switch {
	case msg.HasText && out != "":
		edit = func(ctx context.Context) error { return s.gateway.EditText(ctx, channel, msg.ID, out) }
	case msg.HasText:
		edit = func(ctx context.Context) error { return s.gateway.EditText(ctx, channel, msg.ID, EmptyPlaceholder) }
	default:
		edit = func(ctx context.Context) error { return s.gateway.EditCaption(ctx, channel, msg.ID, out) }
	}
	if err := s.exec.Execute(ctx, edit); err != nil {
		s.fail(job, logger, msg.ID, err)
		return
	}
	job.EditedCount++
	metrics.IncBatchMessage(metrics.ResultEdited)
}

func (s *Service) skip(job *domain.BatchJob) {
	job.SkippedCount++
	metrics.IncBatchMessage(metrics.ResultSkipped)
}

func (s *Service) fail(job *domain.BatchJob, logger zerolog.Logger, messageID int, err error) {
	job.ErrorCount++
	metrics.IncBatchMessage(metrics.ResultFailed)
	logger.Warn().Err(err).Int("message_id", messageID).Msg("не удалось обработать сообщение")
}

// keepAlive продлевает аренду каждые TTL/3, пока задача работает.
func (s *Service) keepAlive(ctx context.Context, lease domain.Lease, channelID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lease.Refresh(ctx); err != nil && ctx.Err() == nil {
					s.log.Warn().Err(err).Int64("channel_id", channelID).Msg("не удалось продлить аренду")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Service) record(ctx context.Context, event string, job domain.BatchJob, runErr error) {
	if s.metrics == nil {
		return
	}
	channelID := job.ChannelID
	meta := map[string]any{
		"upper_bound": job.UpperBound,
		"edited":      job.EditedCount,
		"skipped":     job.SkippedCount,
		"failed":      job.ErrorCount,
		"duration_ms": job.Duration().Milliseconds(),
	}
	if runErr != nil {
		meta["error"] = runErr.Error()
	}
	if err := s.metrics.RecordBusinessMetric(context.WithoutCancel(ctx), domain.BusinessMetric{
		Event:     event,
		ChannelID: &channelID,
		Metadata:  meta,
	}); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("не удалось сохранить бизнес-метрику")
	}
}
