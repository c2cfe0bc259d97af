package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"tg-word-replacer/internal/adapters/repo"
	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/cache"
	"tg-word-replacer/internal/usecase/batch"
	"tg-word-replacer/internal/usecase/dialog"
	"tg-word-replacer/internal/usecase/policy"
	"tg-word-replacer/internal/usecase/ratelimit"
	"tg-word-replacer/internal/usecase/users"
)

const (
	ownerID = int64(1)
	userID  = int64(2)
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
	Edit   bool
}

type mockAPI struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMsg
	requests []tgbotapi.Chattable
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
	case tgbotapi.EditMessageTextConfig:
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text, Edit: true})
	}
	return tgbotapi.Message{MessageID: m.nextID}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *mockAPI) all() []sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMsg(nil), m.sent...)
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type stubGateway struct {
	messages []domain.ChannelMessage
	edits    []string
}

func (g *stubGateway) ResolveChannel(_ context.Context, id int64) (domain.Channel, error) {
	return domain.Channel{ID: id}, nil
}

func (g *stubGateway) Probe(context.Context, domain.Channel) (int, error) {
	return len(g.messages) + 1, nil
}

func (g *stubGateway) FetchMessages(context.Context, domain.Channel, []int) ([]domain.ChannelMessage, error) {
	return g.messages, nil
}

func (g *stubGateway) EditText(_ context.Context, _ domain.Channel, _ int, html string) error {
	g.edits = append(g.edits, html)
	return nil
}

func (g *stubGateway) EditCaption(_ context.Context, _ domain.Channel, _ int, html string) error {
	g.edits = append(g.edits, html)
	return nil
}

func (g *stubGateway) DeleteMessages(context.Context, domain.Channel, []int) error {
	return nil
}

type testBot struct {
	h       *Handler
	api     *mockAPI
	store   *repo.Memory
	policy  *policy.Service
	users   *users.Service
	gateway *stubGateway
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	store := repo.NewMemory()
	api := &mockAPI{}
	log := zerolog.Nop()
	exec := ratelimit.NewExecutor(log, ratelimit.Options{
		MaxRetries: 3,
		Sleep:      func(context.Context, time.Duration) error { return nil },
	})
	policyUC := policy.NewService(store, store, 0)
	usersUC := users.NewService(store, store, nil, nil, store, ownerID)
	gw := &stubGateway{}
	batchUC := batch.NewService(gw, policyUC, exec, cache.NewMemory(), store, log, batch.Options{})
	h := NewHandler(api, log, policyUC, dialog.NewMachine(policyUC, time.Minute), batchUC, usersUC, exec)
	return &testBot{h: h, api: api, store: store, policy: policyUC, users: usersUC, gateway: gw}
}

func textUpdate(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		length := strings.IndexByte(text, ' ')
		if length < 0 {
			length = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from, Type: "private"}},
		Data:    data,
	}}
}

func (b *testBot) send(upd tgbotapi.Update) {
	b.h.HandleUpdate(context.Background(), upd)
}

// --- tests ---

func TestStartRegistersOnce(t *testing.T) {
	b := newTestBot(t)
	b.send(textUpdate(userID, "/start"))
	b.send(textUpdate(userID, "/start"))

	all, _ := b.store.ListUsers(context.Background())
	if len(all) != 1 {
		t.Fatalf("ожидали одного пользователя, получили %d", len(all))
	}
	if !strings.HasPrefix(b.api.lastText(), "✨ Welcome to the Word Replacer Bot! ✨") {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
}

func TestAddWordDialogAndPreview(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.send(textUpdate(userID, "/addword"))
	if b.api.lastText() != TextChooseCategory {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(callbackUpdate(userID, dialog.ActionAddReplace))
	b.send(textUpdate(userID, "cat"))
	if b.api.lastText() != dialog.TextAskReplace {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(textUpdate(userID, "dog"))
	if b.api.lastText() != dialog.TextAdded {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	got, _ := b.policy.Replacements(ctx)
	if diff := cmp.Diff([]domain.RewriteRule{{Word: "cat", Replacement: "dog"}}, got); diff != "" {
		t.Fatalf("replacements (-want +got):\n%s", diff)
	}

	b.send(textUpdate(userID, "my cat sleeps"))
	if b.api.lastText() != "my dog sleeps" {
		t.Fatalf("preview: %q", b.api.lastText())
	}

	_ = b.policy.UpsertRemoval(ctx, "gone")
	b.send(textUpdate(userID, "gone"))
	if b.api.lastText() != TextEmptyRewrite {
		t.Fatalf("пустой результат должен заменяться точкой: %q", b.api.lastText())
	}
}

func TestCancel(t *testing.T) {
	b := newTestBot(t)
	b.send(textUpdate(userID, "/cancel"))
	if b.api.lastText() != TextNothingToCancel {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	b.send(callbackUpdate(userID, dialog.ActionAddRemove))
	b.send(textUpdate(userID, "/cancel"))
	if b.api.lastText() != dialog.TextCancelled {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(textUpdate(userID, "word"))
	if got, _ := b.policy.Removals(context.Background()); len(got) != 0 {
		t.Fatalf("после отмены слово не должно сохраняться: %v", got)
	}
}

func TestBatchCommand(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()
	_ = b.policy.UpsertReplacement(ctx, "old", "new")
	b.gateway.messages = []domain.ChannelMessage{
		{ID: 1, Text: "old post", HasText: true},
		{ID: 2, Text: "old forward", HasText: true, Forwarded: true},
	}

	b.send(textUpdate(userID, "/batch -100123"))
	if b.api.lastText() != TextForbidden {
		t.Fatalf("обычный пользователь не должен запускать /batch: %q", b.api.lastText())
	}

	b.send(textUpdate(ownerID, "/batch"))
	if b.api.lastText() != TextBatchUsage {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(textUpdate(ownerID, "/batch abc"))
	if b.api.lastText() != TextInvalidChannel {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	b.api.reset()
	b.send(textUpdate(ownerID, "/batch -100123"))
	want := []sentMsg{
		{ChatID: ownerID, Text: batch.StartText},
		{ChatID: ownerID, Text: "✅ Batch processing completed.\nEdited: 1\nSkipped: 1\nFailed: 0", Edit: true},
	}
	if diff := cmp.Diff(want, b.api.all()); diff != "" {
		t.Fatalf("status messages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"new post"}, b.gateway.edits); diff != "" {
		t.Fatalf("edits (-want +got):\n%s", diff)
	}
}

func TestAdminCanRunBatch(t *testing.T) {
	b := newTestBot(t)
	if _, err := b.users.AddAdmin(context.Background(), userID); err != nil {
		t.Fatal(err)
	}
	b.send(textUpdate(userID, "/batch -100123"))
	if b.api.lastText() == TextForbidden {
		t.Fatal("администратор должен запускать /batch")
	}
}

func TestBannedUserIsIgnored(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()
	_, _ = b.users.Register(ctx, userID)
	_ = b.users.SetBanned(ctx, userID, true)

	b.send(textUpdate(userID, "/start"))
	b.send(textUpdate(userID, "hello"))
	if len(b.api.all()) != 0 {
		t.Fatalf("заблокированному пользователю не отвечаем: %+v", b.api.all())
	}
}

func TestOwnerCommands(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.send(textUpdate(userID, "/users"))
	if b.api.lastText() != TextForbidden {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	b.send(textUpdate(ownerID, "/users"))
	if b.api.lastText() != TextNoUsers {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	b.send(textUpdate(ownerID, "/user 999"))
	if b.api.lastText() != TextUserNotFound {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(textUpdate(ownerID, "/user @someone"))
	if b.api.lastText() != TextInvalidUserRef {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	_, _ = b.users.Register(ctx, userID)
	b.send(textUpdate(ownerID, "/user 2"))
	if b.api.lastText() != "User Details\nID: 2\nUsername: Not Available\nBanned: false" {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	b.send(textUpdate(ownerID, "/ban 2"))
	if b.api.lastText() != "✅ User 2 banned." {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(textUpdate(ownerID, "/users"))
	if !strings.Contains(b.api.lastText(), "<b>Total Users Count:</b> 1") {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}

	b.send(textUpdate(ownerID, "/addadmin 3"))
	b.send(textUpdate(ownerID, "/admins"))
	if b.api.lastText() != "Admins:\n\n3" {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
	b.send(textUpdate(ownerID, "/removeadmin 3"))
	b.send(textUpdate(ownerID, "/admins"))
	if b.api.lastText() != TextNoAdmins {
		t.Fatalf("unexpected reply: %q", b.api.lastText())
	}
}

func TestCallbackIsAnswered(t *testing.T) {
	b := newTestBot(t)
	b.send(callbackUpdate(userID, CallbackBack))
	if len(b.api.requests) != 1 {
		t.Fatalf("callback должен получить ответ, запросов: %d", len(b.api.requests))
	}
	if !strings.HasPrefix(b.api.lastText(), "✨ Welcome") {
		t.Fatalf("back должен показывать стартовое сообщение: %q", b.api.lastText())
	}
}

func TestRegisterCommands(t *testing.T) {
	b := newTestBot(t)
	if err := b.h.RegisterCommands(context.Background()); err != nil {
		t.Fatal(err)
	}
	cfg, ok := b.api.requests[0].(tgbotapi.SetMyCommandsConfig)
	if !ok {
		t.Fatalf("unexpected request %T", b.api.requests[0])
	}
	if len(cfg.Commands) != len(BotCommands()) {
		t.Fatalf("commands = %d", len(cfg.Commands))
	}
}

func TestGroupMessagesAreIgnored(t *testing.T) {
	b := newTestBot(t)
	upd := textUpdate(userID, "/start")
	upd.Message.Chat = &tgbotapi.Chat{ID: -5, Type: "group"}
	b.send(upd)
	if len(b.api.all()) != 0 {
		t.Fatal("бот отвечает только в личных чатах")
	}
}
