package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	BatchMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_messages_total",
		Help: "Сообщения, обработанные пакетной обработкой, по результату",
	}, []string{"result"})

	BatchJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_jobs_total",
		Help: "Запуски пакетной обработки по статусу",
	}, []string{"status"})

	BatchJobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_job_duration_seconds",
		Help:    "Длительность пакетной обработки канала",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	FloodWaitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "floodwait_total",
		Help: "Количество ожиданий после FLOOD_WAIT",
	})

	FloodWaitSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "floodwait_seconds_total",
		Help: "Суммарное время ожидания после FLOOD_WAIT",
	})

	RewritePreviewTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rewrite_preview_total",
		Help: "Сообщения, переписанные в личном чате",
	}, []string{"changed"})
)

// Результаты обработки сообщения для BatchMessagesTotal.
const (
	ResultEdited  = "edited"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		BatchMessagesTotal,
		BatchJobsTotal,
		BatchJobDuration,
		FloodWaitTotal,
		FloodWaitSeconds,
		RewritePreviewTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveFloodWait учитывает одно ожидание после ограничения частоты.
func ObserveFloodWait(wait time.Duration) {
	FloodWaitTotal.Inc()
	FloodWaitSeconds.Add(wait.Seconds())
}

// IncBatchMessage увеличивает счётчик обработанных сообщений.
func IncBatchMessage(result string) {
	BatchMessagesTotal.WithLabelValues(result).Inc()
}

// ObserveBatchJob учитывает завершение пакетной обработки.
func ObserveBatchJob(status string, duration time.Duration) {
	BatchJobsTotal.WithLabelValues(status).Inc()
	BatchJobDuration.Observe(duration.Seconds())
}

// IncRewritePreview учитывает переписывание сообщения в личном чате.
func IncRewritePreview(changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	RewritePreviewTotal.WithLabelValues(label).Inc()
}
