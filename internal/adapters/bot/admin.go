package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"tg-word-replacer/internal/usecase/users"
)

func (h *Handler) handleUser(ctx context.Context, chatID int64, ref string) {
	if ref == "" {
		h.reply(ctx, chatID, TextUserUsage, nil)
		return
	}
	details, err := h.users.Lookup(ctx, ref)
	if err != nil {
		h.reply(ctx, chatID, userErrorText(err), nil)
		return
	}
	username := "Not Available"
	if details.HasProfile && details.Profile.Username != "" {
		username = "@" + details.Profile.Username
	}
	text := fmt.Sprintf("User Details\nID: %d\nUsername: %s\nBanned: %t", details.User.ID, username, details.User.Banned)
	h.reply(ctx, chatID, text, nil)
}

func (h *Handler) handleUsers(ctx context.Context, chatID int64) {
	entries, err := h.users.List(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить пользователей")
		h.reply(ctx, chatID, errorText(err), nil)
		return
	}
	if len(entries) == 0 {
		h.reply(ctx, chatID, TextNoUsers, nil)
		return
	}
	var b strings.Builder
	b.WriteString("<b>Total Users:</b>\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "<code>%d</code> - <a href=\"tg://user?id=%d\">%s</a>", e.User.ID, e.User.ID, html.EscapeString(e.Profile.DisplayName()))
		if e.User.Banned {
			b.WriteString(" 🚫")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n<b>Total Users Count:</b> %d", len(entries))
	h.replyHTML(ctx, chatID, b.String())
}

func (h *Handler) handleBan(ctx context.Context, chatID int64, ref string, banned bool) {
	if ref == "" {
		h.reply(ctx, chatID, TextUserUsage, nil)
		return
	}
	id, err := h.users.ResolveID(ctx, ref)
	if err != nil {
		h.reply(ctx, chatID, userErrorText(err), nil)
		return
	}
	if err := h.users.SetBanned(ctx, id, banned); err != nil {
		h.reply(ctx, chatID, userErrorText(err), nil)
		return
	}
	h.log.Info().Int64("user", id).Bool("banned", banned).Msg("статус блокировки изменён")
	if banned {
		h.reply(ctx, chatID, fmt.Sprintf("✅ User %d banned.", id), nil)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("✅ User %d unbanned.", id), nil)
}

func (h *Handler) handleAdmins(ctx context.Context, chatID int64) {
	admins, err := h.users.Admins(ctx)
	if err != nil {
		h.reply(ctx, chatID, errorText(err), nil)
		return
	}
	if len(admins) == 0 {
		h.reply(ctx, chatID, TextNoAdmins, nil)
		return
	}
	var b strings.Builder
	b.WriteString("Admins:\n")
	for _, id := range admins {
		b.WriteString("\n" + strconv.FormatInt(id, 10))
	}
	h.reply(ctx, chatID, b.String(), nil)
}

func (h *Handler) handleAdminChange(ctx context.Context, chatID int64, ref string, add bool) {
	if ref == "" {
		h.reply(ctx, chatID, TextUserUsage, nil)
		return
	}
	id, err := h.users.ResolveID(ctx, ref)
	if err != nil {
		h.reply(ctx, chatID, userErrorText(err), nil)
		return
	}
	var changed bool
	if add {
		changed, err = h.users.AddAdmin(ctx, id)
	} else {
		changed, err = h.users.RemoveAdmin(ctx, id)
	}
	if err != nil {
		h.reply(ctx, chatID, errorText(err), nil)
		return
	}
	switch {
	case add && changed:
		h.reply(ctx, chatID, fmt.Sprintf("✅ User %d is now an admin.", id), nil)
	case add:
		h.reply(ctx, chatID, fmt.Sprintf("ℹ️ User %d is already an admin.", id), nil)
	case changed:
		h.reply(ctx, chatID, fmt.Sprintf("✅ User %d is no longer an admin.", id), nil)
	default:
		h.reply(ctx, chatID, fmt.Sprintf("ℹ️ User %d is not an admin.", id), nil)
	}
}

func userErrorText(err error) string {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		return TextUserNotFound
	case errors.Is(err, users.ErrInvalidUserRef):
		return TextInvalidUserRef
	}
	return errorText(err)
}
