// Package dialog ведёт короткие диалоги редактирования правил.
//
// Диалог - явный автомат, ключ которого пара (чат, пользователь). Ответ пользователя
// продвигает автомат, истёкшие диалоги забываются.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/usecase/policy"
)

// State - состояние диалога.
type State int

const (
	StateIdle State = iota
	StateAwaitingWord
	StateAwaitingReplacement
	StateAwaitingIndex
	StateAwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case StateAwaitingWord:
		return "awaiting_word"
	case StateAwaitingReplacement:
		return "awaiting_replacement"
	case StateAwaitingIndex:
		return "awaiting_index"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	}
	return "idle"
}

// Действия меню, совпадают с callback_data кнопок.
const (
	ActionAddReplace     = "add_replace"
	ActionAddRemove      = "add_remove"
	ActionAddUsername    = "add_username"
	ActionRemoveReplace  = "remove_replace"
	ActionRemoveRemove   = "remove_remove"
	ActionRemoveUsername = "remove_username"
)

// Тексты ответов.
const (
	TextAdded        = "✅ Word added successfully."
	TextRemoved      = "✅ Word removed successfully."
	TextCancelled    = "❌ Cancelled."
	TextInvalidIndex = "❌ Invalid number."
	TextEmptyWord    = "❌ The word cannot be empty."
	TextAskReplace   = "Send the replacement word."
	TextNoWords      = "📜 No words in the selected category."
	TextNoUsername   = "No username is configured."
	cancelHint       = "\n\nType /cancel to cancel."
)

// ErrUnknownAction возвращается для неизвестного действия меню.
var ErrUnknownAction = errors.New("неизвестное действие")

// Key идентифицирует диалог.
type Key struct {
	ChatID int64
	UserID int64
}

// Reply - ответ автомата пользователю.
type Reply struct {
	Text string
	// Back просит приложить кнопку возврата в меню.
	Back bool
}

// PolicyEditor - операции над правилами, доступные диалогу.
type PolicyEditor interface {
	UpsertReplacement(ctx context.Context, word, replacement string) error
	UpsertRemoval(ctx context.Context, word string) error
	SetUsername(ctx context.Context, username string) error
	ClearUsername(ctx context.Context) error
	Username(ctx context.Context) (string, bool, error)
	Words(ctx context.Context, category domain.RuleCategory) ([]string, error)
	DeleteByIndex(ctx context.Context, category domain.RuleCategory, index int) (string, error)
}

type conversation struct {
	state    State
	category domain.RuleCategory
	word     string
	expires  time.Time
}

// Machine хранит открытые диалоги.
type Machine struct {
	editor  PolicyEditor
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	convs map[Key]conversation
}

// NewMachine создаёт автомат. timeout ограничивает ожидание ответа пользователя.
func NewMachine(editor PolicyEditor, timeout time.Duration) *Machine {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Machine{
		editor:  editor,
		timeout: timeout,
		now:     time.Now,
		convs:   make(map[Key]conversation),
	}
}

// Begin открывает диалог по нажатию кнопки меню. Предыдущий диалог с тем же ключом заменяется.
func (m *Machine) Begin(ctx context.Context, key Key, action string) (Reply, error) {
	switch action {
	case ActionAddReplace, ActionAddRemove:
		category := domain.CategoryReplace
		if action == ActionAddRemove {
			category = domain.CategoryRemove
		}
		words, err := m.editor.Words(ctx, category)
		if err != nil {
			return Reply{}, err
		}
		var b strings.Builder
		b.WriteString("Send the word you want to add.\n\n📜 Words in the selected category:\n")
		for _, w := range words {
			b.WriteString("\n" + w)
		}
		b.WriteString(cancelHint)
		m.open(key, conversation{state: StateAwaitingWord, category: category})
		return Reply{Text: b.String()}, nil

	case ActionAddUsername:
		current, ok, err := m.editor.Username(ctx)
		if err != nil {
			return Reply{}, err
		}
		text := "Send the username that replaces every @mention."
		if ok {
			text += "\n\nCurrent username: @" + current
		}
		m.open(key, conversation{state: StateAwaitingWord, category: domain.CategoryUsername})
		return Reply{Text: text + cancelHint}, nil

	case ActionRemoveReplace, ActionRemoveRemove:
		category := domain.CategoryReplace
		if action == ActionRemoveRemove {
			category = domain.CategoryRemove
		}
		words, err := m.editor.Words(ctx, category)
		if err != nil {
			return Reply{}, err
		}
		if len(words) == 0 {
			m.Cancel(key)
			return Reply{Text: TextNoWords, Back: true}, nil
		}
		var b strings.Builder
		b.WriteString("📜 Words in the selected category:\n\n")
		for i, w := range words {
			fmt.Fprintf(&b, "%d) %s\n", i+1, w)
		}
		b.WriteString("\nSend the word number you want to remove\n\nExample: 1")
		b.WriteString(cancelHint)
		m.open(key, conversation{state: StateAwaitingIndex, category: category})
		return Reply{Text: b.String()}, nil

	case ActionRemoveUsername:
		current, ok, err := m.editor.Username(ctx)
		if err != nil {
			return Reply{}, err
		}
		if !ok {
			m.Cancel(key)
			return Reply{Text: TextNoUsername, Back: true}, nil
		}
		m.open(key, conversation{state: StateAwaitingConfirmation, category: domain.CategoryUsername})
		return Reply{Text: fmt.Sprintf("Current username: @%s\n\nSend \"yes\" to remove it.%s", current, cancelHint)}, nil
	}
	return Reply{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
}

// Handle продвигает открытый диалог ответом пользователя.
// handled ложно, если открытого диалога нет и сообщение нужно обработать иначе.
func (m *Machine) Handle(ctx context.Context, key Key, text string) (reply Reply, handled bool, err error) {
	conv, ok := m.current(key)
	if !ok {
		return Reply{}, false, nil
	}
	if strings.TrimSpace(text) == "/cancel" {
		m.Cancel(key)
		return Reply{Text: TextCancelled, Back: true}, true, nil
	}

	switch conv.state {
	case StateAwaitingWord:
		switch conv.category {
		case domain.CategoryReplace:
			if strings.TrimSpace(text) == "" {
				return Reply{Text: TextEmptyWord}, true, nil
			}
			conv.state = StateAwaitingReplacement
			conv.word = text
			m.open(key, conv)
			return Reply{Text: TextAskReplace}, true, nil
		case domain.CategoryRemove:
			err = m.editor.UpsertRemoval(ctx, text)
		default:
			err = m.editor.SetUsername(ctx, text)
		}
		return m.finish(key, TextAdded, err)

	case StateAwaitingReplacement:
		return m.finish(key, TextAdded, m.editor.UpsertReplacement(ctx, conv.word, text))

	case StateAwaitingIndex:
		index, convErr := strconv.Atoi(strings.TrimSpace(text))
		if convErr != nil {
			m.open(key, conv)
			return Reply{Text: TextInvalidIndex}, true, nil
		}
		_, err = m.editor.DeleteByIndex(ctx, conv.category, index)
		if errors.Is(err, policy.ErrInvalidIndex) {
			m.open(key, conv)
			return Reply{Text: TextInvalidIndex}, true, nil
		}
		return m.finish(key, TextRemoved, err)

	case StateAwaitingConfirmation:
		if !strings.EqualFold(strings.TrimSpace(text), "yes") {
			m.Cancel(key)
			return Reply{Text: TextCancelled, Back: true}, true, nil
		}
		return m.finish(key, TextRemoved, m.editor.ClearUsername(ctx))
	}
	m.Cancel(key)
	return Reply{}, false, nil
}

func (m *Machine) finish(key Key, success string, err error) (Reply, bool, error) {
	if errors.Is(err, policy.ErrEmptyWord) || errors.Is(err, policy.ErrEmptyUsername) {
		m.touch(key)
		return Reply{Text: TextEmptyWord}, true, nil
	}
	m.Cancel(key)
	if err != nil {
		return Reply{}, true, err
	}
	return Reply{Text: success, Back: true}, true, nil
}

// Cancel закрывает диалог и сообщает, был ли он открыт.
func (m *Machine) Cancel(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[key]
	delete(m.convs, key)
	return ok && m.now().Before(conv.expires)
}

// State возвращает текущее состояние диалога.
func (m *Machine) State(key Key) State {
	conv, ok := m.current(key)
	if !ok {
		return StateIdle
	}
	return conv.state
}

// Sweep удаляет истёкшие диалоги.
func (m *Machine) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, conv := range m.convs {
		if !now.Before(conv.expires) {
			delete(m.convs, key)
			removed++
		}
	}
	return removed
}

func (m *Machine) open(key Key, conv conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv.expires = m.now().Add(m.timeout)
	m.convs[key] = conv
}

func (m *Machine) touch(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[key]; ok {
		conv.expires = m.now().Add(m.timeout)
		m.convs[key] = conv
	}
}

func (m *Machine) current(key Key) (conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[key]
	if !ok {
		return conversation{}, false
	}
	if !m.now().Before(conv.expires) {
		delete(m.convs, key)
		return conversation{}, false
	}
	return conv, true
}
