package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"places-bot/internal/domain"
)

// chatQueueSize bounds the per-chat update backlog before the poll loop
// applies backpressure.
const chatQueueSize = 32

// tokenPayload is the expected JSON shape stored in SSM for the bot token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Handler consumes one inbound event and returns the replies to send.
type Handler interface {
	HandleEvent(ctx context.Context, ev domain.Event) []domain.Reply
}

// botAPI is the minimal Telegram API surface required by Bot.
// *tgbotapi.BotAPI satisfies this interface.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot long-polls Telegram for updates and fans them out to one worker
// goroutine per chat, so events within a chat are handled strictly in
// arrival order while separate chats proceed in parallel. The handler
// is supplied to Run, not here, so the Bot can double as the photo
// fetcher of the service it feeds.
type Bot struct {
	api        botAPI
	token      string
	log        *slog.Logger
	httpClient *http.Client

	handler Handler

	mu    sync.Mutex
	chats map[int64]chan tgbotapi.Update
	wg    sync.WaitGroup
}

type Option func(*Bot)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(b *Bot) {
		b.httpClient = httpClient
	}
}

// NewBot resolves the bot token from the parameter store and connects
// to the Telegram API.
func NewBot(ctx context.Context, ps Getter, paramPrefix string, log *slog.Logger, opts ...Option) (*Bot, error) {
	if ps == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}

	token, err := fetchTokenFromParamStore(ctx, ps, paramPrefix+"/telegram-bot-token")
	if err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}

	b := &Bot{
		api:        api,
		token:      token,
		log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		chats:      make(map[int64]chan tgbotapi.Update),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run polls for updates until the context is cancelled, then drains the
// per-chat workers before returning.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("telegram: handler must not be nil")
	}
	b.handler = handler

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.closeChats()
			b.wg.Wait()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				b.closeChats()
				b.wg.Wait()
				return nil
			}
			chatID, ok := updateChatID(upd)
			if !ok {
				continue
			}
			b.chatQueue(ctx, chatID) <- upd
		}
	}
}

// chatQueue returns the update queue for a chat, spawning its worker on
// first use.
func (b *Bot) chatQueue(ctx context.Context, chatID int64) chan tgbotapi.Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.chats[chatID]
	if !ok {
		ch = make(chan tgbotapi.Update, chatQueueSize)
		b.chats[chatID] = ch
		b.wg.Add(1)
		go b.chatWorker(ctx, chatID, ch)
	}
	return ch
}

func (b *Bot) closeChats() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.chats {
		close(ch)
	}
	b.chats = make(map[int64]chan tgbotapi.Update)
}

func (b *Bot) chatWorker(ctx context.Context, chatID int64, ch <-chan tgbotapi.Update) {
	defer b.wg.Done()
	for upd := range ch {
		b.handleUpdate(ctx, chatID, upd)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, chatID int64, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		// Stop the client-side spinner regardless of handling outcome.
		if _, err := b.api.Request(tgbotapi.NewCallback(upd.CallbackQuery.ID, "")); err != nil {
			b.log.Warn("answer callback", "err", err)
		}
	}

	ev, ok := eventFromUpdate(upd)
	if !ok {
		return
	}
	for _, reply := range b.handler.HandleEvent(ctx, ev) {
		if err := b.send(chatID, reply); err != nil {
			b.log.Error("send reply", "chat", chatID, "err", err)
		}
	}
}

// eventFromUpdate maps one Telegram update to a conversation event. ok
// is false for update kinds the bot does not consume.
func eventFromUpdate(upd tgbotapi.Update) (domain.Event, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.From == nil {
			return domain.Event{}, false
		}
		return domain.Event{
			UserID: cq.From.ID,
			ChatID: cq.Message.Chat.ID,
			Kind:   domain.EventButton,
			Button: cq.Data,
		}, true
	}

	msg := upd.Message
	if msg == nil || msg.From == nil {
		return domain.Event{}, false
	}
	ev := domain.Event{
		UserID: msg.From.ID,
		ChatID: msg.Chat.ID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = domain.EventCommand
		ev.Command = msg.Command()
	case msg.Venue != nil:
		ev.Kind = domain.EventLocation
		ev.Location = &domain.Location{
			Latitude:  msg.Venue.Location.Latitude,
			Longitude: msg.Venue.Location.Longitude,
			Address:   msg.Venue.Address,
		}
	case msg.Location != nil:
		ev.Kind = domain.EventLocation
		ev.Location = &domain.Location{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}
	case len(msg.Photo) > 0:
		ev.Kind = domain.EventPhoto
		for _, ps := range msg.Photo {
			ev.Photo = append(ev.Photo, domain.PhotoVariant{
				FileID: ps.FileID,
				Width:  ps.Width,
				Height: ps.Height,
			})
		}
	default:
		ev.Kind = domain.EventText
		ev.Text = msg.Text
	}
	return ev, true
}

func updateChatID(upd tgbotapi.Update) (int64, bool) {
	if upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil {
		return upd.CallbackQuery.Message.Chat.ID, true
	}
	if upd.Message != nil {
		return upd.Message.Chat.ID, true
	}
	return 0, false
}

func (b *Bot) send(chatID int64, reply domain.Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case reply.RequestLocation:
		msg.ReplyMarkup = locationKeyboard()
	case len(reply.Buttons) > 0:
		msg.ReplyMarkup = inlineKeyboard(reply.Buttons)
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func inlineKeyboard(rows [][]domain.Button) tgbotapi.InlineKeyboardMarkup {
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Token))
		}
		kb = append(kb, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

func locationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation("Share location")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

// FetchPhoto downloads the bytes of one photo variant by file id.
func (b *Bot) FetchPhoto(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("telegram: get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.token), nil)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: create download request: %w", err)
	}
	res, err := b.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: download file: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, "", fmt.Errorf("telegram: download file: unexpected status %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 20<<20))
	if err != nil {
		return nil, "", fmt.Errorf("telegram: read file body: %w", err)
	}
	return data, res.Header.Get("Content-Type"), nil
}

func (b *Bot) resolvedHTTPClient() *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func fetchTokenFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("telegram: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("telegram: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("telegram: bot token is empty")
	}
	return tp.Token, nil
}
