package domain

import "time"

// BatchJob хранит состояние одного запуска пакетной обработки канала.
// Живёт только на время запуска и не сохраняется.
type BatchJob struct {
	ChannelID    int64
	UpperBound   int
	Cursor       int
	EditedCount  int
	SkippedCount int
	ErrorCount   int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Processed возвращает количество просмотренных сообщений.
func (j BatchJob) Processed() int {
	return j.EditedCount + j.SkippedCount + j.ErrorCount
}

// Duration возвращает длительность запуска.
func (j BatchJob) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
