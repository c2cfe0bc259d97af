package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-word-replacer/internal/domain"
)

// Тексты ответов бота.
const (
	TextChooseCategory  = "Choose the category:"
	TextForbidden       = "⛔ You are not allowed to use this command."
	TextNothingToCancel = "Nothing to cancel."
	TextBatchUsage      = "Usage: /batch <channel_id>"
	TextInvalidChannel  = "Invalid channel ID."
	TextBatchRunning    = "⏳ Batch processing is already running for this channel."
	TextUserUsage       = "Please specify a user id or username!\n\nExample: /user 1234567890 or /user @username"
	TextUserNotFound    = "No user found with this id!"
	TextInvalidUserRef  = "Invalid user id or username!"
	TextNoUsers         = "Total Users:\n\nNo Users"
	TextNoAdmins        = "No admins configured."
	TextDev             = "👨‍💻 Developer\n\nReach out for bots, automation and custom Telegram tooling."
	// TextEmptyRewrite отправляется, если после переписывания не осталось текста.
	TextEmptyRewrite = "."
)

// CallbackBack возвращает в стартовое меню.
const CallbackBack = "back"

// BotCommands - меню команд, публикуемое при запуске.
func BotCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "addword", Description: "Add or update a word"},
		{Command: "removeword", Description: "Remove a word"},
		{Command: "batch", Description: "Rewrite channel history"},
		{Command: "cancel", Description: "Cancel the current dialog"},
		{Command: "dev", Description: "Developer contacts"},
	}
}

func addKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Replace Words", "add_replace")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Remove Words", "add_remove")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👤 Username", "add_username")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back", CallbackBack)),
	)
	return &kb
}

func removeKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Replace Words", "remove_replace")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Remove Words", "remove_remove")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👤 Username", "remove_username")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back", CallbackBack)),
	)
	return &kb
}

func backKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back", CallbackBack)),
	)
	return &kb
}

func devKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Telegram", "https://telegram.me/ask_admin001"),
			tgbotapi.NewInlineKeyboardButtonURL("GitHub", "https://github.com/kevinnadar22"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Fiverr", "https://www.fiverr.com/kevin264_"),
		),
	)
	return &kb
}

// buildStartMessage показывает текущие правила.
func buildStartMessage(p domain.Policy) string {
	var b strings.Builder
	b.WriteString("✨ Welcome to the Word Replacer Bot! ✨\n\n")
	b.WriteString("🔄 Replace Words:\n")
	for _, r := range p.Replacements {
		fmt.Fprintf(&b, "%s ➡️ %s\n", r.Word, r.Replacement)
	}
	b.WriteString("\n❌ Remove Words:\n")
	for _, w := range p.Removals {
		b.WriteString(w + "\n")
	}
	b.WriteString("\n👤 Username: ")
	if p.HasUsername() {
		b.WriteString("@" + p.Username)
	} else {
		b.WriteString("not set")
	}
	b.WriteString("\n\nUse /addword to add or update words and /removeword to remove words.")
	return b.String()
}

func errorText(err error) string {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Sprintf("❌ An error occurred: too many requests, retry in %s", rl.Wait)
	}
	return "❌ An error occurred: " + err.Error()
}
