// Package rewrite применяет политику замен к тексту.
package rewrite

import (
	"regexp"
	"strings"

	"tg-word-replacer/internal/domain"
)

var mentionRegex = regexp.MustCompile(`@\w+`)

// Rewrite применяет политику к тексту: замены, затем удаления, затем подстановку username.
// Совпадения ищутся как подстроки, без учёта границ слов.
func Rewrite(text string, policy domain.Policy) string {
	if text == "" {
		return text
	}
	for _, rule := range policy.Replacements {
		if rule.Word == "" {
			continue
		}
		text = strings.ReplaceAll(text, rule.Word, rule.Replacement)
	}
	for _, word := range policy.Removals {
		if word == "" {
			continue
		}
		text = strings.ReplaceAll(text, word, "")
	}
	if policy.HasUsername() {
		text = mentionRegex.ReplaceAllLiteralString(text, "@"+policy.Username)
	}
	return text
}

// Changed применяет политику и сообщает, изменился ли текст.
func Changed(text string, policy domain.Policy) (string, bool) {
	out := Rewrite(text, policy)
	return out, out != text
}
