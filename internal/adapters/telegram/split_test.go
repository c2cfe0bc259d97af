package telegram

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitMessageShortText(t *testing.T) {
	text := "  keep   spacing  "
	if diff := cmp.Diff([]string{text}, SplitMessage(text)); diff != "" {
		t.Fatalf("parts (-want +got):\n%s", diff)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("expected no parts for blank input, got %d", len(parts))
	}
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n\n" + strings.Repeat("b", 2000)
	parts := SplitMessage(text)
	want := []string{strings.Repeat("a", 3000), strings.Repeat("b", 2000)}
	if diff := cmp.Diff(want, parts); diff != "" {
		t.Fatalf("parts (-want +got):\n%s", diff)
	}
}

func TestSplitLimitFallsBackToSpace(t *testing.T) {
	got := splitLimit("one two three", 8)
	if diff := cmp.Diff([]string{"one two ", "three"}, got); diff != "" {
		t.Fatalf("parts (-want +got):\n%s", diff)
	}
}

func TestSplitLimitHardCut(t *testing.T) {
	got := splitLimit("abcdefgh", 3)
	if diff := cmp.Diff([]string{"abc", "def", "gh"}, got); diff != "" {
		t.Fatalf("parts (-want +got):\n%s", diff)
	}
}

func TestSplitLimitCountsUTF16(t *testing.T) {
	// Эмодзи занимает две единицы UTF-16.
	got := splitLimit("😀😀😀", 4)
	if diff := cmp.Diff([]string{"😀😀", "😀"}, got); diff != "" {
		t.Fatalf("parts (-want +got):\n%s", diff)
	}
	for _, part := range SplitMessage(strings.Repeat("😀", 3000)) {
		if n := utf16Len(part); n > MessageLimit {
			t.Fatalf("part exceeds limit: %d", n)
		}
	}
}
