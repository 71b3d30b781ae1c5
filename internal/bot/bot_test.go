package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/resetlink/backend/internal/services"
	"github.com/resetlink/backend/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)

	switch msg := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return msg.Text
	case tgbotapi.EditMessageTextConfig:
		return msg.Text
	default:
		t.Fatalf("unexpected chattable %T", msg)
		return ""
	}
}

type fakeIssuer struct {
	issued []string
	err    error
}

func (f *fakeIssuer) Issue(ctx context.Context, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if !validation.ValidateEmail(email) {
		return "", services.ErrInvalidEmail
	}
	f.issued = append(f.issued, validation.NormalizeEmail(email))
	return "tok123", nil
}

type fakeMailer struct {
	to     []string
	tokens []string
	err    error
}

func (f *fakeMailer) SendResetLink(to, token string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.tokens = append(f.tokens, token)
	return nil
}

func newTestBot() (*Bot, *fakeSender, *fakeIssuer, *fakeMailer) {
	out := &fakeSender{}
	issuer := &fakeIssuer{}
	mailer := &fakeMailer{}
	b := New(nil, issuer, mailer, NewMemorySessionStore())
	b.out = out
	return b, out, issuer, mailer
}

func commandMessage(chatID int64, command string) *tgbotapi.Message {
	text := "/" + command
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
	}
}

func mustState(t *testing.T, b *Bot, chatID int64) DialogState {
	t.Helper()
	state, err := b.sessions.State(context.Background(), chatID)
	require.NoError(t, err)
	return state
}

func TestStartShowsResetButton(t *testing.T) {
	b, out, _, _ := newTestBot()

	b.handleMessage(context.Background(), commandMessage(1, "start"))

	require.Len(t, out.sent, 1)
	msg, ok := out.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, msgWelcome, msg.Text)
	assert.NotNil(t, msg.ReplyMarkup)
	assert.Equal(t, StateIdle, mustState(t, b, 1))
}

func TestResetCommandEntersEmailDialog(t *testing.T) {
	b, out, _, _ := newTestBot()

	b.handleMessage(context.Background(), commandMessage(1, "reset"))

	assert.Equal(t, msgAskEmail, out.lastText(t))
	assert.Equal(t, StateAwaitingEmail, mustState(t, b, 1))
}

func TestResetButtonEntersEmailDialog(t *testing.T) {
	b, out, _, _ := newTestBot()

	query := &tgbotapi.CallbackQuery{
		ID:   "q1",
		Data: resetCallbackKey,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: 1},
		},
	}
	b.handleCallback(context.Background(), query)

	assert.Equal(t, msgAskEmail, out.lastText(t))
	assert.Equal(t, StateAwaitingEmail, mustState(t, b, 1))
}

func TestInvalidEmailReprompts(t *testing.T) {
	b, out, issuer, _ := newTestBot()
	ctx := context.Background()

	b.handleMessage(ctx, commandMessage(1, "reset"))
	b.handleMessage(ctx, textMessage(1, "not-an-email"))

	assert.Equal(t, msgBadEmail, out.lastText(t))
	assert.Empty(t, issuer.issued)
	// The dialogue stays open for another attempt.
	assert.Equal(t, StateAwaitingEmail, mustState(t, b, 1))
}

func TestValidEmailIssuesTokenAndSendsLink(t *testing.T) {
	b, out, issuer, mailer := newTestBot()
	ctx := context.Background()

	b.handleMessage(ctx, commandMessage(1, "reset"))
	b.handleMessage(ctx, textMessage(1, " User@Example.com "))

	require.Equal(t, []string{"user@example.com"}, issuer.issued)
	require.Equal(t, []string{"user@example.com"}, mailer.to)
	require.Equal(t, []string{"tok123"}, mailer.tokens)
	assert.Contains(t, out.lastText(t), "Reset link sent to user@example.com")
	assert.Equal(t, StateIdle, mustState(t, b, 1))
}

func TestDeliveryFailureEndsDialog(t *testing.T) {
	b, out, issuer, mailer := newTestBot()
	mailer.err = errors.New("relay unreachable")
	ctx := context.Background()

	b.handleMessage(ctx, commandMessage(1, "reset"))
	b.handleMessage(ctx, textMessage(1, "user@example.com"))

	// The token was issued before delivery failed and stays pending.
	assert.Equal(t, []string{"user@example.com"}, issuer.issued)
	assert.Equal(t, msgMailFailed, out.lastText(t))
	assert.Equal(t, StateIdle, mustState(t, b, 1))
}

func TestCancelReturnsToIdle(t *testing.T) {
	b, out, _, _ := newTestBot()
	ctx := context.Background()

	b.handleMessage(ctx, commandMessage(1, "reset"))
	b.handleMessage(ctx, commandMessage(1, "cancel"))

	assert.Equal(t, msgCancelled, out.lastText(t))
	assert.Equal(t, StateIdle, mustState(t, b, 1))
}

func TestFreeTextWhileIdleIsIgnored(t *testing.T) {
	b, out, issuer, _ := newTestBot()

	b.handleMessage(context.Background(), textMessage(1, "hello there"))

	assert.Empty(t, out.sent)
	assert.Empty(t, issuer.issued)
}

func TestDialogStateIsPerChat(t *testing.T) {
	b, _, issuer, _ := newTestBot()
	ctx := context.Background()

	b.handleMessage(ctx, commandMessage(1, "reset"))
	b.handleMessage(ctx, textMessage(2, "user@example.com"))

	// Chat 2 never entered the dialogue, so its text is ignored.
	assert.Empty(t, issuer.issued)
	assert.Equal(t, StateAwaitingEmail, mustState(t, b, 1))
	assert.Equal(t, StateIdle, mustState(t, b, 2))
}
