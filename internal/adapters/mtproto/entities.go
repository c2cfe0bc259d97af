package mtproto

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/gotd/td/tg"
)

// span - размеченный участок текста в единицах UTF-16.
type span struct {
	start, end int
	open       string
	close      string
}

// EntitiesToHTML собирает HTML-представление текста с сущностями Telegram.
// Неизвестные сущности сохраняют текст без разметки.
func EntitiesToHTML(text string, entities []tg.MessageEntityClass) string {
	spans := make([]span, 0, len(entities))
	for _, e := range entities {
		open, closeTag, ok := entityTags(e)
		if !ok || e.GetLength() <= 0 {
			continue
		}
		spans = append(spans, span{
			start: e.GetOffset(),
			end:   e.GetOffset() + e.GetLength(),
			open:  open,
			close: closeTag,
		})
	}
	if len(spans) == 0 {
		var b strings.Builder
		for _, r := range text {
			b.WriteString(escapeRune(r))
		}
		return b.String()
	}
	// Внешние сущности открываются раньше вложенных.
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var (
		b     strings.Builder
		stack []span
		next  int
		pos   int
	)
	closeAt := func(pos int) {
		for {
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].end <= pos {
					idx = i
					break
				}
			}
			if idx < 0 {
				return
			}
			// Пересекающиеся сущности закрываются и открываются заново.
			reopen := append([]span(nil), stack[idx+1:]...)
			for i := len(stack) - 1; i >= idx; i-- {
				b.WriteString(stack[i].close)
			}
			stack = append(stack[:idx], reopen...)
			for _, s := range reopen {
				b.WriteString(s.open)
			}
		}
	}
	openAt := func(pos int) {
		for next < len(spans) && spans[next].start <= pos {
			b.WriteString(spans[next].open)
			stack = append(stack, spans[next])
			next++
		}
	}

	for _, r := range text {
		closeAt(pos)
		openAt(pos)
		b.WriteString(escapeRune(r))
		pos += utf16.RuneLen(r)
	}
	closeAt(pos)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString(stack[i].close)
	}
	return b.String()
}

func escapeRune(r rune) string {
	switch r {
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	case '&':
		return "&amp;"
	case '"':
		return "&quot;"
	}
	return string(r)
}

func entityTags(e tg.MessageEntityClass) (string, string, bool) {
	switch v := e.(type) {
	case *tg.MessageEntityBold:
		return "<b>", "</b>", true
	case *tg.MessageEntityItalic:
		return "<i>", "</i>", true
	case *tg.MessageEntityUnderline:
		return "<u>", "</u>", true
	case *tg.MessageEntityStrike:
		return "<s>", "</s>", true
	case *tg.MessageEntityCode:
		return "<code>", "</code>", true
	case *tg.MessageEntityPre:
		if v.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(v.Language) + `">`, "</code></pre>", true
		}
		return "<pre>", "</pre>", true
	case *tg.MessageEntityTextURL:
		return `<a href="` + html.EscapeString(v.URL) + `">`, "</a>", true
	case *tg.MessageEntityMentionName:
		return `<a href="tg://user?id=` + strconv.FormatInt(v.UserID, 10) + `">`, "</a>", true
	}
	return "", "", false
}
