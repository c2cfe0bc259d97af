package mtproto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"tg-word-replacer/internal/domain"
	"tg-word-replacer/internal/infra/metrics"
)

// channelIDPrefix отделяет идентификатор канала в Bot API от идентификатора MTProto.
const channelIDPrefix = 1_000_000_000_000

// ErrChannelNotFound возвращается, если канал недоступен боту.
var ErrChannelNotFound = errors.New("канал не найден")

// Gateway реализует domain.ChannelGateway и domain.UserResolver.
type Gateway struct {
	api      *tg.Client
	sender   *message.Sender
	resolver peer.Resolver
	log      zerolog.Logger
}

var (
	_ domain.ChannelGateway = (*Gateway)(nil)
	_ domain.UserResolver   = (*Gateway)(nil)
)

// NewGateway создаёт шлюз поверх клиента tg.
func NewGateway(api *tg.Client, log zerolog.Logger) *Gateway {
	return &Gateway{
		api:      api,
		sender:   message.NewSender(api),
		resolver: peer.DefaultResolver(api),
		log:      log,
	}
}

// RawChannelID переводит идентификатор вида -100XXXXXXXXXX в идентификатор MTProto.
func RawChannelID(id int64) int64 {
	switch {
	case id < -channelIDPrefix:
		return -id - channelIDPrefix
	case id < 0:
		return -id
	}
	return id
}

// ResolveChannel загружает канал. Бот обращается с нулевым access_hash.
func (g *Gateway) ResolveChannel(ctx context.Context, channelID int64) (domain.Channel, error) {
	raw := RawChannelID(channelID)
	start := time.Now()
	res, err := g.api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: raw}})
	metrics.ObserveNetworkRequest("mtproto", "channels_get_channels", strconv.FormatInt(channelID, 10), start, err)
	if err != nil {
		return domain.Channel{}, wrapErr(err)
	}

	var chats []tg.ChatClass
	switch v := res.(type) {
	case *tg.MessagesChats:
		chats = v.Chats
	case *tg.MessagesChatsSlice:
		chats = v.Chats
	}
	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok || ch.ID != raw {
			continue
		}
		return domain.Channel{ID: channelID, RawID: raw, AccessHash: ch.AccessHash, Title: ch.Title}, nil
	}
	return domain.Channel{}, fmt.Errorf("%w: %d", ErrChannelNotFound, channelID)
}

// Probe отправляет в канал "." и возвращает идентификатор нового сообщения.
func (g *Gateway) Probe(ctx context.Context, channel domain.Channel) (int, error) {
	start := time.Now()
	upd, err := g.sender.To(inputPeer(channel)).Text(ctx, ".")
	metrics.ObserveNetworkRequest("mtproto", "send_probe", channelTarget(channel), start, err)
	if err != nil {
		return 0, wrapErr(err)
	}
	id, ok := sentMessageID(upd)
	if !ok {
		return 0, fmt.Errorf("в ответе нет идентификатора сообщения: %T", upd)
	}
	return id, nil
}

// FetchMessages загружает сообщения по идентификаторам одним запросом.
func (g *Gateway) FetchMessages(ctx context.Context, channel domain.Channel, ids []int) ([]domain.ChannelMessage, error) {
	in := make([]tg.InputMessageClass, 0, len(ids))
	for _, id := range ids {
		in = append(in, &tg.InputMessageID{ID: id})
	}
	start := time.Now()
	res, err := g.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: inputChannel(channel),
		ID:      in,
	})
	metrics.ObserveNetworkRequest("mtproto", "channels_get_messages", channelTarget(channel), start, err)
	if err != nil {
		return nil, wrapErr(err)
	}

	var raw []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesChannelMessages:
		raw = v.Messages
	case *tg.MessagesMessages:
		raw = v.Messages
	case *tg.MessagesMessagesSlice:
		raw = v.Messages
	}
	out := make([]domain.ChannelMessage, 0, len(raw))
	for _, m := range raw {
		if msg, ok := toChannelMessage(m); ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// EditText заменяет текст сообщения на HTML.
func (g *Gateway) EditText(ctx context.Context, channel domain.Channel, messageID int, text string) error {
	return g.edit(ctx, "edit_text", channel, messageID, text)
}

// EditCaption заменяет подпись к медиа. Пустая строка убирает подпись.
func (g *Gateway) EditCaption(ctx context.Context, channel domain.Channel, messageID int, text string) error {
	if text != "" {
		return g.edit(ctx, "edit_caption", channel, messageID, text)
	}
	req := &tg.MessagesEditMessageRequest{Peer: inputPeer(channel), ID: messageID}
	req.SetMessage("")
	start := time.Now()
	_, err := g.api.MessagesEditMessage(ctx, req)
	metrics.ObserveNetworkRequest("mtproto", "edit_caption", channelTarget(channel), start, err)
	return wrapErr(ignoreNotModified(err))
}

func (g *Gateway) edit(ctx context.Context, operation string, channel domain.Channel, messageID int, text string) error {
	start := time.Now()
	_, err := g.sender.To(inputPeer(channel)).Edit(messageID).StyledText(ctx, html.String(nil, text))
	metrics.ObserveNetworkRequest("mtproto", operation, channelTarget(channel), start, err)
	return wrapErr(ignoreNotModified(err))
}

// DeleteMessages удаляет сообщения канала.
func (g *Gateway) DeleteMessages(ctx context.Context, channel domain.Channel, ids []int) error {
	start := time.Now()
	_, err := g.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
		Channel: inputChannel(channel),
		ID:      ids,
	})
	metrics.ObserveNetworkRequest("mtproto", "channels_delete_messages", channelTarget(channel), start, err)
	return wrapErr(err)
}

// ResolveUsername находит пользователя по username.
func (g *Gateway) ResolveUsername(ctx context.Context, username string) (domain.TelegramProfile, error) {
	start := time.Now()
	p, err := g.resolver.ResolveDomain(ctx, username)
	metrics.ObserveNetworkRequest("mtproto", "resolve_username", username, start, err)
	if err != nil {
		return domain.TelegramProfile{}, wrapErr(err)
	}
	user, ok := p.(*tg.InputPeerUser)
	if !ok {
		return domain.TelegramProfile{}, fmt.Errorf("@%s не пользователь", username)
	}
	return domain.TelegramProfile{ID: user.UserID, Username: username}, nil
}

func toChannelMessage(m tg.MessageClass) (domain.ChannelMessage, bool) {
	switch v := m.(type) {
	case *tg.Message:
		out := domain.ChannelMessage{ID: v.ID}
		_, out.Forwarded = v.GetFwdFrom()
		if v.Message == "" {
			return out, true
		}
		rich := EntitiesToHTML(v.Message, v.Entities)
		if media, ok := v.GetMedia(); ok && hasCaption(media) {
			out.Caption = rich
			out.HasCaption = true
			return out, true
		}
		out.Text = rich
		out.HasText = true
		return out, true
	case *tg.MessageService:
		return domain.ChannelMessage{ID: v.ID}, true
	case *tg.MessageEmpty:
		return domain.ChannelMessage{ID: v.ID}, true
	}
	return domain.ChannelMessage{}, false
}

// hasCaption сообщает, что текст сообщения является подписью к медиа.
func hasCaption(media tg.MessageMediaClass) bool {
	switch media.(type) {
	case *tg.MessageMediaEmpty, *tg.MessageMediaWebPage:
		return false
	}
	return true
}

func sentMessageID(upd tg.UpdatesClass) (int, bool) {
	var updates []tg.UpdateClass
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, true
	case *tg.Updates:
		updates = u.Updates
	case *tg.UpdatesCombined:
		updates = u.Updates
	}
	for _, update := range updates {
		switch v := update.(type) {
		case *tg.UpdateNewChannelMessage:
			if msg, ok := v.Message.(*tg.Message); ok {
				return msg.ID, true
			}
		case *tg.UpdateNewMessage:
			if msg, ok := v.Message.(*tg.Message); ok {
				return msg.ID, true
			}
		}
	}
	for _, update := range updates {
		if v, ok := update.(*tg.UpdateMessageID); ok {
			return v.ID, true
		}
	}
	return 0, false
}

// wrapErr переводит FLOOD_WAIT в domain.RateLimitError.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &domain.RateLimitError{Wait: wait, Err: err}
	}
	return err
}

func ignoreNotModified(err error) error {
	if tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return nil
	}
	return err
}

func inputChannel(ch domain.Channel) *tg.InputChannel {
	return &tg.InputChannel{ChannelID: ch.RawID, AccessHash: ch.AccessHash}
}

func inputPeer(ch domain.Channel) *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: ch.RawID, AccessHash: ch.AccessHash}
}

func channelTarget(ch domain.Channel) string {
	return strconv.FormatInt(ch.ID, 10)
}
