package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-word-replacer/internal/adapters/telegram"
	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/metrics"
	"tg-word-replacer/internal/usecase/batch"
	"tg-word-replacer/internal/usecase/dialog"
	"tg-word-replacer/internal/usecase/policy"
	"tg-word-replacer/internal/usecase/ratelimit"
	"tg-word-replacer/internal/usecase/users"
)

// telegramAPI - часть Bot API, которой пользуется обработчик.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler обслуживает апдейты бота.
type Handler struct {
	api     telegramAPI
	log     zerolog.Logger
	policy  *policy.Service
	dialogs *dialog.Machine
	batch   *batch.Service
	users   *users.Service
	exec    *ratelimit.Executor
}

// NewHandler создаёт обработчик.
func NewHandler(api telegramAPI, log zerolog.Logger, policyUC *policy.Service, dialogs *dialog.Machine, batchUC *batch.Service, usersUC *users.Service, exec *ratelimit.Executor) *Handler {
	return &Handler{
		api:     api,
		log:     log,
		policy:  policyUC,
		dialogs: dialogs,
		batch:   batchUC,
		users:   usersUC,
		exec:    exec,
	}
}

// Serve обрабатывает апдейты из канала, каждый в своей горутине, до отмены ctx.
func (h *Handler) Serve(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := h.dialogs.Sweep(); n > 0 {
				h.log.Debug().Int("count", n).Msg("истёкшие диалоги удалены")
			}
		case upd, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Int("update_id", upd.UpdateID).Msg("паника при обработке апдейта")
		}
	}()
	switch {
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	access, ok := h.access(ctx, msg.From.ID)
	if !ok {
		return
	}
	chatID := msg.Chat.ID
	key := dialog.Key{ChatID: chatID, UserID: msg.From.ID}

	if msg.Text != "" && (!msg.IsCommand() || msg.Command() == "cancel") {
		reply, handled, err := h.dialogs.Handle(ctx, key, msg.Text)
		if err != nil {
			h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("ошибка диалога")
			h.reply(ctx, chatID, errorText(err), nil)
			return
		}
		if handled {
			h.replyDialog(ctx, chatID, reply)
			return
		}
	}

	if !msg.IsCommand() {
		h.handlePreview(ctx, msg)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.replyStart(ctx, chatID)
	case "addword":
		if h.requireEditPolicy(ctx, chatID, access) {
			h.reply(ctx, chatID, TextChooseCategory, addKeyboard())
		}
	case "removeword":
		if h.requireEditPolicy(ctx, chatID, access) {
			h.reply(ctx, chatID, TextChooseCategory, removeKeyboard())
		}
	case "cancel":
		h.reply(ctx, chatID, TextNothingToCancel, nil)
	case "batch":
		if !access.RunBatch {
			h.reply(ctx, chatID, TextForbidden, nil)
			return
		}
		h.handleBatch(ctx, msg, args)
	case "user":
		if h.requireOwner(ctx, chatID, access) {
			h.handleUser(ctx, chatID, args)
		}
	case "users":
		if h.requireOwner(ctx, chatID, access) {
			h.handleUsers(ctx, chatID)
		}
	case "ban", "unban":
		if h.requireOwner(ctx, chatID, access) {
			h.handleBan(ctx, chatID, args, msg.Command() == "ban")
		}
	case "admins":
		if h.requireOwner(ctx, chatID, access) {
			h.handleAdmins(ctx, chatID)
		}
	case "addadmin", "removeadmin":
		if access.ManageAdmins {
			h.handleAdminChange(ctx, chatID, args, msg.Command() == "addadmin")
		} else {
			h.reply(ctx, chatID, TextForbidden, nil)
		}
	case "dev":
		h.reply(ctx, chatID, TextDev, devKeyboard())
	default:
		h.handlePreview(ctx, msg)
	}
}

// access возвращает права пользователя. Заблокированные пользователи игнорируются.
func (h *Handler) access(ctx context.Context, userID int64) (domain.Access, bool) {
	role, err := h.users.Role(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user", userID).Msg("не удалось определить роль")
	}
	if role == domain.UserRoleBanned {
		h.log.Debug().Int64("user", userID).Msg("апдейт заблокированного пользователя пропущен")
		return domain.Access{}, false
	}
	return domain.AccessForRole(role), true
}

func (h *Handler) requireEditPolicy(ctx context.Context, chatID int64, access domain.Access) bool {
	if !access.EditPolicy {
		h.reply(ctx, chatID, TextForbidden, nil)
		return false
	}
	return true
}

func (h *Handler) requireOwner(ctx context.Context, chatID int64, access domain.Access) bool {
	if !access.ManageUsers {
		h.reply(ctx, chatID, TextForbidden, nil)
		return false
	}
	return true
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer h.answerCallback(cb)
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	access, ok := h.access(ctx, cb.From.ID)
	if !ok {
		return
	}
	chatID := cb.Message.Chat.ID
	key := dialog.Key{ChatID: chatID, UserID: cb.From.ID}

	switch cb.Data {
	case CallbackBack:
		h.dialogs.Cancel(key)
		h.replyStart(ctx, chatID)
	case dialog.ActionAddReplace, dialog.ActionAddRemove, dialog.ActionAddUsername,
		dialog.ActionRemoveReplace, dialog.ActionRemoveRemove, dialog.ActionRemoveUsername:
		if !h.requireEditPolicy(ctx, chatID, access) {
			return
		}
		reply, err := h.dialogs.Begin(ctx, key, cb.Data)
		if err != nil {
			h.log.Error().Err(err).Str("action", cb.Data).Msg("не удалось открыть диалог")
			h.reply(ctx, chatID, errorText(err), nil)
			return
		}
		h.replyDialog(ctx, chatID, reply)
	default:
		h.log.Debug().Str("data", cb.Data).Msg("неизвестный callback")
	}
}

func (h *Handler) answerCallback(cb *tgbotapi.CallbackQuery) {
	start := time.Now()
	_, err := h.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	target := "unknown"
	if cb.From != nil {
		target = strconv.FormatInt(cb.From.ID, 10)
	}
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", target, start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) replyDialog(ctx context.Context, chatID int64, reply dialog.Reply) {
	var keyboard *tgbotapi.InlineKeyboardMarkup
	if reply.Back {
		keyboard = backKeyboard()
	}
	h.reply(ctx, chatID, reply.Text, keyboard)
}

// reply отправляет текст, разбивая его по лимиту Telegram.
func (h *Handler) reply(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	h.replyWithMode(ctx, chatID, text, "", keyboard)
}

func (h *Handler) replyHTML(ctx context.Context, chatID int64, text string) {
	h.replyWithMode(ctx, chatID, text, tgbotapi.ModeHTML, nil)
}

func (h *Handler) replyWithMode(ctx context.Context, chatID int64, text, mode string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	for i, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = mode
		msg.DisableWebPagePreview = true
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		if _, err := h.send(ctx, "send_message", chatID, msg); err != nil {
			h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
			return
		}
	}
}

// send выполняет вызов Bot API с повторами после retry_after.
func (h *Handler) send(ctx context.Context, operation string, chatID int64, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var sent tgbotapi.Message
	err := h.exec.Execute(ctx, func(ctx context.Context) error {
		start := time.Now()
		msg, err := h.api.Send(c)
		metrics.ObserveNetworkRequest("telegram_bot", operation, strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			return telegram.WrapBotError(err)
		}
		sent = msg
		return nil
	})
	return sent, err
}

// RegisterCommands публикует меню команд бота.
func (h *Handler) RegisterCommands(ctx context.Context) error {
	cfg := tgbotapi.NewSetMyCommands(BotCommands()...)
	return h.exec.Execute(ctx, func(context.Context) error {
		start := time.Now()
		_, err := h.api.Request(cfg)
		metrics.ObserveNetworkRequest("telegram_bot", "set_my_commands", "self", start, err)
		return telegram.WrapBotError(err)
	})
}
