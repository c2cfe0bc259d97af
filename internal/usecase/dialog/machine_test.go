package dialog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tg-word-replacer/internal/adapters/repo"
	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/usecase/policy"
)

var key = Key{ChatID: 100, UserID: 7}

func newTestMachine() (*Machine, *policy.Service, *time.Time) {
	svc := policy.NewService(repo.NewMemory(), nil, 0)
	m := NewMachine(svc, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	return m, svc, &now
}

func TestAddReplacementFlow(t *testing.T) {
	ctx := context.Background()
	m, svc, _ := newTestMachine()

	reply, err := m.Begin(ctx, key, ActionAddReplace)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(reply.Text, "Send the word you want to add.") {
		t.Fatalf("unexpected prompt: %q", reply.Text)
	}
	if m.State(key) != StateAwaitingWord {
		t.Fatalf("state = %v", m.State(key))
	}

	reply, handled, err := m.Handle(ctx, key, "cat")
	if err != nil || !handled || reply.Text != TextAskReplace {
		t.Fatalf("word step: %+v %v %v", reply, handled, err)
	}
	if m.State(key) != StateAwaitingReplacement {
		t.Fatalf("state = %v", m.State(key))
	}

	reply, handled, err = m.Handle(ctx, key, "dog")
	if err != nil || !handled {
		t.Fatalf("replacement step: %v %v", handled, err)
	}
	if diff := cmp.Diff(Reply{Text: TextAdded, Back: true}, reply); diff != "" {
		t.Fatalf("reply (-want +got):\n%s", diff)
	}
	if m.State(key) != StateIdle {
		t.Fatal("диалог должен закрыться")
	}
	got, _ := svc.Replacements(ctx)
	if diff := cmp.Diff([]domain.RewriteRule{{Word: "cat", Replacement: "dog"}}, got); diff != "" {
		t.Fatalf("replacements (-want +got):\n%s", diff)
	}
}

func TestAddRemovalAndUsername(t *testing.T) {
	ctx := context.Background()
	m, svc, _ := newTestMachine()

	_, _ = m.Begin(ctx, key, ActionAddRemove)
	if reply, _, _ := m.Handle(ctx, key, "   "); reply.Text != TextEmptyWord {
		t.Fatalf("пустое слово: %+v", reply)
	}
	if m.State(key) != StateAwaitingWord {
		t.Fatal("после пустого слова диалог должен остаться открытым")
	}
	if reply, _, _ := m.Handle(ctx, key, "spam"); reply.Text != TextAdded {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	_, _ = m.Begin(ctx, key, ActionAddUsername)
	if reply, _, _ := m.Handle(ctx, key, "@channel"); reply.Text != TextAdded {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	p, _ := svc.Snapshot(ctx)
	want := domain.Policy{Removals: []string{"spam"}, Username: "channel"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("policy (-want +got):\n%s", diff)
	}
}

func TestRemoveByIndex(t *testing.T) {
	ctx := context.Background()
	m, svc, _ := newTestMachine()
	_ = svc.UpsertRemoval(ctx, "a")
	_ = svc.UpsertRemoval(ctx, "b")

	reply, err := m.Begin(ctx, key, ActionRemoveRemove)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply.Text, "1) a\n2) b\n") {
		t.Fatalf("список должен быть пронумерован: %q", reply.Text)
	}

	for _, bad := range []string{"x", "0", "3"} {
		reply, handled, err := m.Handle(ctx, key, bad)
		if err != nil || !handled || reply.Text != TextInvalidIndex {
			t.Fatalf("ввод %q: %+v %v %v", bad, reply, handled, err)
		}
		if m.State(key) != StateAwaitingIndex {
			t.Fatalf("после %q диалог должен остаться открытым", bad)
		}
	}

	reply, _, _ = m.Handle(ctx, key, "2")
	if reply.Text != TextRemoved {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	got, _ := svc.Removals(ctx)
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Fatalf("removals (-want +got):\n%s", diff)
	}
}

func TestRemoveFromEmptyCategory(t *testing.T) {
	m, _, _ := newTestMachine()
	reply, err := m.Begin(context.Background(), key, ActionRemoveReplace)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != TextNoWords || m.State(key) != StateIdle {
		t.Fatalf("unexpected: %+v state=%v", reply, m.State(key))
	}
}

func TestRemoveUsernameConfirmation(t *testing.T) {
	ctx := context.Background()
	m, svc, _ := newTestMachine()
	_ = svc.SetUsername(ctx, "me")

	_, _ = m.Begin(ctx, key, ActionRemoveUsername)
	if m.State(key) != StateAwaitingConfirmation {
		t.Fatalf("state = %v", m.State(key))
	}
	if reply, _, _ := m.Handle(ctx, key, "no"); reply.Text != TextCancelled {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if _, ok, _ := svc.Username(ctx); !ok {
		t.Fatal("username не должен удаляться без подтверждения")
	}

	_, _ = m.Begin(ctx, key, ActionRemoveUsername)
	if reply, _, _ := m.Handle(ctx, key, "YES"); reply.Text != TextRemoved {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if _, ok, _ := svc.Username(ctx); ok {
		t.Fatal("username должен быть удалён")
	}

	if reply, _ := m.Begin(ctx, key, ActionRemoveUsername); reply.Text != TextNoUsername {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestCancelAndTimeout(t *testing.T) {
	ctx := context.Background()
	m, svc, now := newTestMachine()

	_, _ = m.Begin(ctx, key, ActionAddRemove)
	reply, handled, _ := m.Handle(ctx, key, "/cancel")
	if !handled || reply.Text != TextCancelled || !reply.Back {
		t.Fatalf("unexpected cancel reply: %+v", reply)
	}
	if _, handled, _ := m.Handle(ctx, key, "spam"); handled {
		t.Fatal("после /cancel сообщение не должно попадать в диалог")
	}

	_, _ = m.Begin(ctx, key, ActionAddRemove)
	*now = now.Add(2 * time.Minute)
	if _, handled, _ := m.Handle(ctx, key, "spam"); handled {
		t.Fatal("истёкший диалог не должен обрабатывать ответ")
	}
	if got, _ := svc.Removals(ctx); len(got) != 0 {
		t.Fatalf("слово не должно сохраниться: %v", got)
	}
}

func TestDialogsAreKeyedByChatAndUser(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine()
	other := Key{ChatID: key.ChatID, UserID: 8}

	_, _ = m.Begin(ctx, key, ActionAddRemove)
	if m.State(other) != StateIdle {
		t.Fatal("диалог другого пользователя не должен быть открыт")
	}
	if _, handled, _ := m.Handle(ctx, other, "x"); handled {
		t.Fatal("ответ другого пользователя не должен попадать в чужой диалог")
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	m, _, now := newTestMachine()
	_, _ = m.Begin(ctx, key, ActionAddRemove)
	_, _ = m.Begin(ctx, Key{ChatID: 1, UserID: 1}, ActionAddRemove)
	*now = now.Add(2 * time.Minute)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("Sweep = %d", n)
	}
}

func TestUnknownAction(t *testing.T) {
	m, _, _ := newTestMachine()
	if _, err := m.Begin(context.Background(), key, "add_other"); err == nil {
		t.Fatal("ожидали ошибку")
	}
}
