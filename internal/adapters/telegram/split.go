package telegram

import (
	"strings"
	"unicode/utf16"
)

// MessageLimit - предел длины сообщения Bot API в единицах UTF-16.
const MessageLimit = 4096

// SplitMessage режет ответ на части не длиннее MessageLimit.
// Разрез ставится после последнего перевода строки, затем после пробела;
// содержимое частей не меняется.
func SplitMessage(text string) []string {
	return splitLimit(text, MessageLimit)
}

func splitLimit(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var parts []string
	for utf16Len(text) > limit {
		cut := cutIndex(text, limit)
		if chunk := strings.TrimRight(text[:cut], "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// cutIndex возвращает байтовое смещение разреза, при котором префикс укладывается в limit.
func cutIndex(text string, limit int) int {
	units, hard := 0, len(text)
	lastNewline, lastSpace := -1, -1
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit {
			hard = i
			break
		}
		units += n
		switch r {
		case '\n':
			lastNewline = i + 1
		case ' ':
			lastSpace = i + 1
		}
	}
	switch {
	case lastNewline > 0:
		return lastNewline
	case lastSpace > 0:
		return lastSpace
	}
	return hard
}

func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
