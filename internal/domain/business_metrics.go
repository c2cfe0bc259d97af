package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	ChannelID  *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventUserRegistered фиксирует регистрацию нового пользователя.
	BusinessMetricEventUserRegistered = "user_registered"
	// BusinessMetricEventPolicyChanged фиксирует изменение правил переписывания.
	BusinessMetricEventPolicyChanged = "policy_changed"
	// BusinessMetricEventBatchCompleted фиксирует завершение пакетной обработки канала.
	BusinessMetricEventBatchCompleted = "batch_completed"
	// BusinessMetricEventBatchFailed фиксирует аварийное завершение пакетной обработки.
	BusinessMetricEventBatchFailed = "batch_failed"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
