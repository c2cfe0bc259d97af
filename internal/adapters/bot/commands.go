package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-word-replacer/internal/infra/metrics"
	"tg-word-replacer/internal/usecase/batch"
	"tg-word-replacer/internal/usecase/rewrite"
)

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	created, err := h.users.Register(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось зарегистрировать пользователя")
	} else if created {
		h.log.Info().Int64("user", msg.From.ID).Msg("новый пользователь")
	}
	h.replyStart(ctx, msg.Chat.ID)
}

func (h *Handler) replyStart(ctx context.Context, chatID int64) {
	p, err := h.policy.Snapshot(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось прочитать правила")
		h.reply(ctx, chatID, errorText(err), nil)
		return
	}
	h.reply(ctx, chatID, buildStartMessage(p), nil)
}

// handlePreview отвечает переписанной копией текста или подписи.
func (h *Handler) handlePreview(ctx context.Context, msg *tgbotapi.Message) {
	source := msg.Text
	isCaption := false
	if source == "" {
		source = msg.Caption
		isCaption = true
	}
	if source == "" {
		return
	}
	p, err := h.policy.Current(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось прочитать правила")
		h.reply(ctx, msg.Chat.ID, errorText(err), nil)
		return
	}
	out, changed := rewrite.Changed(source, p)
	metrics.IncRewritePreview(changed)
	if strings.TrimSpace(out) == "" {
		out = TextEmptyRewrite
	}
	var keyboard *tgbotapi.InlineKeyboardMarkup
	if isCaption {
		keyboard = msg.ReplyMarkup
	}
	h.reply(ctx, msg.Chat.ID, out, keyboard)
}

func (h *Handler) handleBatch(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	reporter := &statusReporter{h: h, chatID: chatID}
	job, err := h.batch.Run(ctx, args, reporter)
	switch {
	case err == nil:
		h.log.Info().
			Int64("user", msg.From.ID).
			Int64("channel_id", job.ChannelID).
			Int("edited", job.EditedCount).
			Msg("пакетная обработка выполнена по команде")
	case errors.Is(err, batch.ErrUsage):
		h.reply(ctx, chatID, TextBatchUsage, nil)
	case errors.Is(err, batch.ErrInvalidChannel):
		h.reply(ctx, chatID, TextInvalidChannel, nil)
	case errors.Is(err, batch.ErrJobRunning):
		h.reply(ctx, chatID, TextBatchRunning, nil)
	case reporter.messageID == 0:
		h.reply(ctx, chatID, batch.FailedText(err), nil)
	}
}

// statusReporter ведёт одно статусное сообщение пакетной обработки.
type statusReporter struct {
	h         *Handler
	chatID    int64
	messageID int
}

func (r *statusReporter) Start(ctx context.Context, text string) error {
	sent, err := r.h.send(ctx, "send_message", r.chatID, tgbotapi.NewMessage(r.chatID, text))
	if err != nil {
		return err
	}
	r.messageID = sent.MessageID
	return nil
}

func (r *statusReporter) Finish(ctx context.Context, text string) error {
	if r.messageID == 0 {
		_, err := r.h.send(ctx, "send_message", r.chatID, tgbotapi.NewMessage(r.chatID, text))
		return err
	}
	_, err := r.h.send(ctx, "edit_message", r.chatID, tgbotapi.NewEditMessageText(r.chatID, r.messageID, text))
	return err
}
