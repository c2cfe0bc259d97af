package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestEntitiesToHTML(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []tg.MessageEntityClass
		want     string
	}{
		{
			name: "plain text is escaped",
			text: "a < b & c",
			want: "a &lt; b &amp; c",
		},
		{
			name:     "bold",
			text:     "hello world",
			entities: []tg.MessageEntityClass{&tg.MessageEntityBold{Offset: 6, Length: 5}},
			want:     "hello <b>world</b>",
		},
		{
			name: "nested",
			text: "bold italic",
			entities: []tg.MessageEntityClass{
				&tg.MessageEntityItalic{Offset: 5, Length: 6},
				&tg.MessageEntityBold{Offset: 0, Length: 11},
			},
			want: "<b>bold <i>italic</i></b>",
		},
		{
			name:     "utf16 offsets after emoji",
			text:     "😀 link",
			entities: []tg.MessageEntityClass{&tg.MessageEntityTextURL{Offset: 3, Length: 4, URL: "https://t.me/x?a=1&b=2"}},
			want:     `😀 <a href="https://t.me/x?a=1&amp;b=2">link</a>`,
		},
		{
			name:     "pre with language",
			text:     "x := 1",
			entities: []tg.MessageEntityClass{&tg.MessageEntityPre{Offset: 0, Length: 6, Language: "go"}},
			want:     `<pre><code class="language-go">x := 1</code></pre>`,
		},
		{
			name: "overlapping entities are reopened",
			text: "abcd",
			entities: []tg.MessageEntityClass{
				&tg.MessageEntityBold{Offset: 0, Length: 3},
				&tg.MessageEntityItalic{Offset: 1, Length: 3},
			},
			want: "<b>a<i>bc</i></b><i>d</i>",
		},
		{
			name:     "unknown entity keeps text",
			text:     "#tag",
			entities: []tg.MessageEntityClass{&tg.MessageEntityHashtag{Offset: 0, Length: 4}},
			want:     "#tag",
		},
		{
			name:     "mention name",
			text:     "Bob",
			entities: []tg.MessageEntityClass{&tg.MessageEntityMentionName{Offset: 0, Length: 3, UserID: 42}},
			want:     `<a href="tg://user?id=42">Bob</a>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EntitiesToHTML(tt.text, tt.entities); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
