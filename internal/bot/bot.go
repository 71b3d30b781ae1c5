package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/resetlink/backend/internal/logger"
	"github.com/resetlink/backend/internal/services"
	"github.com/resetlink/backend/pkg/validation"
	"go.uber.org/zap"
)

const (
	msgWelcome       = "Welcome! Choose an option:"
	msgAskEmail      = "Please reply with the email you want to reset (example: you@domain.com)."
	msgBadEmail      = "That doesn't look like a valid email. Please try again."
	msgMailFailed    = "Failed to send email. Please try again later."
	msgCancelled     = "Cancelled."
	msgLinkSentFmt   = "Reset link sent to %s. Check your email."
	resetCallbackKey = "reset"
)

// tokenIssuer is the slice of the lifecycle service the dialogue needs.
type tokenIssuer interface {
	Issue(ctx context.Context, email string) (string, error)
}

// ResetMailer delivers the reset link for a freshly issued token.
type ResetMailer interface {
	SendResetLink(to, token string) error
}

// sender is the outbound half of the Telegram API.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot runs the conversational intake: it collects an email address over
// Telegram and triggers token issuance plus link delivery.
type Bot struct {
	api      *tgbotapi.BotAPI
	out      sender
	tokens   tokenIssuer
	mailer   ResetMailer
	sessions SessionStore
}

func New(api *tgbotapi.BotAPI, tokens tokenIssuer, mailer ResetMailer, sessions SessionStore) *Bot {
	return &Bot{
		api:      api,
		out:      api,
		tokens:   tokens,
		mailer:   mailer,
		sessions: sessions,
	}
}

// Run polls for updates until the context is cancelled. Updates are handled
// one at a time; the only shared state is the session store.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	logger.Log.Info("telegram bot polling started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.sendStartMenu(chatID)
		case "reset":
			b.enterEmailDialog(ctx, chatID)
		case "cancel":
			b.cancelDialog(ctx, chatID)
		}
		return
	}

	state, err := b.sessions.State(ctx, chatID)
	if err != nil {
		logger.Log.Error("session lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if state == StateAwaitingEmail {
		b.receiveEmail(ctx, chatID, msg.Text)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.out.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		logger.Log.Warn("callback ack failed", zap.Error(err))
	}

	if query.Data == resetCallbackKey && query.Message != nil {
		chatID := query.Message.Chat.ID
		edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, msgAskEmail)
		if _, err := b.out.Send(edit); err != nil {
			logger.Log.Warn("callback reply failed", zap.Error(err))
		}
		if err := b.sessions.SetState(ctx, chatID, StateAwaitingEmail); err != nil {
			logger.Log.Error("session update failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

func (b *Bot) sendStartMenu(chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Reset Password", resetCallbackKey),
		),
	)
	msg := tgbotapi.NewMessage(chatID, msgWelcome)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

func (b *Bot) enterEmailDialog(ctx context.Context, chatID int64) {
	b.send(tgbotapi.NewMessage(chatID, msgAskEmail))
	if err := b.sessions.SetState(ctx, chatID, StateAwaitingEmail); err != nil {
		logger.Log.Error("session update failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) cancelDialog(ctx context.Context, chatID int64) {
	if err := b.sessions.Clear(ctx, chatID); err != nil {
		logger.Log.Error("session clear failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.send(tgbotapi.NewMessage(chatID, msgCancelled))
}

// receiveEmail handles free text while awaiting an address. Invalid input
// re-prompts and keeps the dialogue open; delivery failure ends it without
// retrying, leaving the already-issued token pending.
func (b *Bot) receiveEmail(ctx context.Context, chatID int64, text string) {
	token, err := b.tokens.Issue(ctx, text)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEmail) {
			b.send(tgbotapi.NewMessage(chatID, msgBadEmail))
			return
		}
		logger.Log.Error("token issue failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, msgMailFailed))
		b.clearSession(ctx, chatID)
		return
	}

	email := validation.NormalizeEmail(text)
	if err := b.mailer.SendResetLink(email, token); err != nil {
		logger.Log.Error("reset email failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, msgMailFailed))
		b.clearSession(ctx, chatID)
		return
	}

	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(msgLinkSentFmt, email)))
	b.clearSession(ctx, chatID)
}

func (b *Bot) clearSession(ctx context.Context, chatID int64) {
	if err := b.sessions.Clear(ctx, chatID); err != nil {
		logger.Log.Error("session clear failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.out.Send(c); err != nil {
		logger.Log.Warn("telegram send failed", zap.Error(err))
	}
}
