// Package telegram adapts the conversation engine to the Telegram Bot API:
// long polling in, inline keyboards and document uploads out.
package telegram

import (
	"context"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/repuestoselcholo/devolucionesbot/internal/bot"
)

const (
	pollTimeout    = 30 * time.Second
	initialBackoff = 2 * time.Second
	maxBackoff     = 2 * time.Minute
	maxRetries     = 10
)

// Engine is the conversation engine slice the transport drives.
type Engine interface {
	Handle(ctx context.Context, ev bot.Event) ([]bot.Reply, error)
}

// Transport drives the polling loop and message rendering.
type Transport struct {
	api      *tgbotapi.BotAPI
	engine   Engine
	sessions bot.SessionStore
	allowed  map[string]bool // empty means everyone
}

// New authenticates against the Bot API.
func New(token string, engine Engine, sessions bot.SessionStore, allowedUsers []string) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	allowed := map[string]bool{}
	for _, u := range allowedUsers {
		allowed[u] = true
	}

	return &Transport{
		api:      api,
		engine:   engine,
		sessions: sessions,
		allowed:  allowed,
	}, nil
}

// Username returns the authorized bot account name.
func (t *Transport) Username() string {
	return t.api.Self.UserName
}

// Run polls for updates until the context is cancelled. Connection errors
// reconnect with bounded exponential backoff; after maxRetries consecutive
// failures the transport gives up and returns the last error instead of
// retrying forever.
func (t *Transport) Run(ctx context.Context) error {
	offset := 0
	backoff := initialBackoff
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = int(pollTimeout.Seconds())

		updates, err := t.api.GetUpdates(u)
		if err != nil {
			failures++
			if failures >= maxRetries {
				return fmt.Errorf("telegram polling: giving up after %d attempts: %w", failures, err)
			}
			log.Printf("⚠️  Telegram polling error (attempt %d/%d): %v. Reconnecting in %s...",
				failures, maxRetries, err, backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		failures = 0
		backoff = initialBackoff

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Transport) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := t.toEvent(update)
	if !ok {
		return
	}

	if len(t.allowed) > 0 && !t.allowed[ev.Username] {
		t.sendText(ev.ChatID, "Este bot es de uso interno.")
		return
	}

	replies, err := t.dispatch(ctx, ev)
	if err != nil {
		// Unhandled failure: never leave the chat stuck mid-step.
		log.Printf("💥 Unhandled error for chat %d: %v", ev.ChatID, err)
		if cerr := t.sessions.Clear(ev.ChatID); cerr != nil {
			log.Printf("⚠️  Could not reset session %d: %v", ev.ChatID, cerr)
		}
		t.sendText(ev.ChatID, "💥 Ocurrió un error inesperado. Volvé a intentarlo desde el menú con /start.")
		return
	}

	for _, r := range replies {
		t.sendReply(ev.ChatID, r)
	}
}

// dispatch calls the engine, converting a handler panic into an error so
// one bad update cannot take down the polling loop.
func (t *Transport) dispatch(ctx context.Context, ev bot.Event) (replies []bot.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic for chat %d: %v", ev.ChatID, r)
		}
	}()
	return t.engine.Handle(ctx, ev)
}

func (t *Transport) toEvent(update tgbotapi.Update) (bot.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		// Ack first so the client stops the spinner even if handling is slow.
		if _, err := t.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			log.Printf("⚠️  answerCallbackQuery: %v", err)
		}
		if cq.Message == nil {
			return bot.Event{}, false
		}
		return bot.Event{
			ChatID:   cq.Message.Chat.ID,
			UserID:   cq.From.ID,
			Username: cq.From.UserName,
			Choice:   cq.Data,
		}, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return bot.Event{}, false
		}
		return bot.Event{
			ChatID:   msg.Chat.ID,
			UserID:   msg.From.ID,
			Username: msg.From.UserName,
			Text:     msg.Text,
		}, true
	}
	return bot.Event{}, false
}

func (t *Transport) sendReply(chatID int64, r bot.Reply) {
	if r.Text != "" {
		msg := tgbotapi.NewMessage(chatID, r.Text)
		if len(r.Options) > 0 {
			msg.ReplyMarkup = keyboard(r.Options)
		}
		if _, err := t.api.Send(msg); err != nil {
			log.Printf("⚠️  sendMessage to %d: %v", chatID, err)
		}
	}
	for _, d := range r.Documents {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: d.Name, Bytes: d.Data})
		if _, err := t.api.Send(doc); err != nil {
			log.Printf("⚠️  sendDocument to %d: %v", chatID, err)
		}
	}
}

func (t *Transport) sendText(chatID int64, text string) {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("⚠️  sendMessage to %d: %v", chatID, err)
	}
}

// SendTo delivers a plain text message to an arbitrary chat, used for the
// operator notifications.
func (t *Transport) SendTo(chatID int64, text string) {
	if chatID != 0 {
		t.sendText(chatID, text)
	}
}

// One button per row, matching the original menus.
func keyboard(options []bot.Option) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(o.Label, o.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
