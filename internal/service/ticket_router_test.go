package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/events"
	"github.com/iCCupCalico/bot/internal/persistence"
	"github.com/iCCupCalico/bot/internal/repository"
	"github.com/iCCupCalico/bot/internal/service"
	"github.com/iCCupCalico/bot/internal/transport"
)

const operatorChat int64 = -1002699790388

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeMessenger records outbound messages and can simulate delivery failure.
type fakeMessenger struct {
	sent    []sentMessage
	failFor map[int64]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{failFor: map[int64]error{}}
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string) (int, error) {
	if err := f.failFor[chatID]; err != nil {
		return 0, err
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return len(f.sent), nil
}

func (f *fakeMessenger) SendKeyboard(ctx context.Context, chatID int64, text string, _ [][]string) (int, error) {
	return f.Send(ctx, chatID, text)
}

func (f *fakeMessenger) Typing(context.Context, int64) error { return nil }

func (f *fakeMessenger) to(chatID int64) []string {
	var texts []string
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func newRouter(t *testing.T) (*service.TicketRouter, *repository.TicketStore, *fakeMessenger) {
	t.Helper()
	file := persistence.NewTicketFile(filepath.Join(t.TempDir(), "tickets.json"), zap.NewNop())
	store, err := repository.NewTicketStore(file, zap.NewNop())
	require.NoError(t, err)

	messenger := newFakeMessenger()
	router := service.NewTicketRouter(service.RouterDependencies{
		Store:        store,
		Messenger:    messenger,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       zap.NewNop(),
		OperatorChat: operatorChat,
	})
	return router, store, messenger
}

func userMessage(senderID int64, text string, at time.Time) transport.Inbound {
	return transport.Inbound{
		SenderID:   senderID,
		Username:   "user",
		FullName:   "Test User",
		ChatID:     senderID,
		Text:       text,
		ReceivedAt: at,
	}
}

func operatorMessage(text string) transport.Inbound {
	return transport.Inbound{SenderID: 1, ChatID: operatorChat, Text: text, ReceivedAt: time.Now()}
}

func TestCloseThenNewMessageOpensNewTicket(t *testing.T) {
	// Scenario: user reports, operator closes, user writes again.
	router, store, messenger := newRouter(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", now)))

	first, ok := store.FindOpenFor(42)
	require.True(t, ok)
	require.False(t, first.Closed)
	require.Empty(t, first.Updates)

	require.NoError(t, router.HandleOperatorMessage(ctx, operatorMessage(fmt.Sprintf("/close %d", first.ID))))

	closed, err := store.Get(first.ID)
	require.NoError(t, err)
	require.True(t, closed.Closed)

	userTexts := messenger.to(42)
	require.Contains(t, userTexts[len(userTexts)-1], fmt.Sprintf("тикет №%d был закрыт", first.ID))

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "still happening", now.Add(time.Hour))))

	second, ok := store.FindOpenFor(42)
	require.True(t, ok)
	require.NotEqual(t, first.ID, second.ID, "message after closure opens a fresh ticket")
	require.Equal(t, "still happening", second.Problem)
}

func TestFollowUpAppendsToOpenTicket(t *testing.T) {
	router, store, messenger := newRouter(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(7, "cannot connect", now)))
	require.NoError(t, router.HandleUserMessage(ctx, userMessage(7, "still cannot connect", now.Add(time.Minute))))

	ticket, ok := store.FindOpenFor(7)
	require.True(t, ok)
	require.Equal(t, "cannot connect", ticket.Problem)
	require.Len(t, ticket.Updates, 1)
	require.Equal(t, "still cannot connect", ticket.Updates[0].Message)

	operatorTexts := messenger.to(operatorChat)
	require.Len(t, operatorTexts, 2)
	require.Contains(t, operatorTexts[0], "Новый тикет!")
	require.Contains(t, operatorTexts[1], fmt.Sprintf("Обновление тикета №%d", ticket.ID))

	userTexts := messenger.to(7)
	require.Len(t, userTexts, 2)
	require.Contains(t, userTexts[0], fmt.Sprintf("№%d принят", ticket.ID))
	require.Contains(t, userTexts[1], fmt.Sprintf("добавлено в тикет №%d", ticket.ID))
}

func TestReplyToUnknownTicket(t *testing.T) {
	router, store, messenger := newRouter(t)
	ctx := context.Background()

	require.NoError(t, router.HandleOperatorMessage(ctx, operatorMessage("/reply 999 hello")))

	operatorTexts := messenger.to(operatorChat)
	require.Len(t, operatorTexts, 1)
	require.Contains(t, operatorTexts[0], "Тикет с ID 999 не найден")
	require.Empty(t, store.List(), "no state mutated")
}

func TestMalformedCloseGetsUsageHint(t *testing.T) {
	router, store, messenger := newRouter(t)
	ctx := context.Background()

	require.NoError(t, router.HandleOperatorMessage(ctx, operatorMessage("/close abc")))

	operatorTexts := messenger.to(operatorChat)
	require.Len(t, operatorTexts, 1)
	require.Contains(t, operatorTexts[0], "/close <ticket_id>")
	require.Empty(t, store.List())
}

func TestReplyForwardsTextWithoutPersisting(t *testing.T) {
	router, store, messenger := newRouter(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", now)))
	ticket, ok := store.FindOpenFor(42)
	require.True(t, ok)

	require.NoError(t, router.HandleOperatorMessage(ctx,
		operatorMessage(fmt.Sprintf("/reply %d попробуйте переустановить", ticket.ID))))

	userTexts := messenger.to(42)
	require.Contains(t, userTexts[len(userTexts)-1],
		fmt.Sprintf("Ответ на ваш тикет №%d:\nпопробуйте переустановить", ticket.ID))

	operatorTexts := messenger.to(operatorChat)
	require.Contains(t, operatorTexts[len(operatorTexts)-1],
		fmt.Sprintf("Ответ на тикет №%d успешно отправлен", ticket.ID))

	// Replies are ephemeral notifications; the stored record is untouched.
	after, err := store.Get(ticket.ID)
	require.NoError(t, err)
	require.Empty(t, after.Updates)
	require.False(t, after.Closed)
}

func TestMentionedOperatorCommandStillExecutes(t *testing.T) {
	// Telegram's autocomplete in the operator group inserts the bot
	// mention; /close@BotName must behave exactly like /close.
	router, store, messenger := newRouter(t)
	ctx := context.Background()

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", time.Now())))
	ticket, ok := store.FindOpenFor(42)
	require.True(t, ok)

	require.NoError(t, router.HandleOperatorMessage(ctx,
		operatorMessage(fmt.Sprintf("/close@iCCupSupportBot %d", ticket.ID))))

	after, err := store.Get(ticket.ID)
	require.NoError(t, err)
	require.True(t, after.Closed)

	operatorTexts := messenger.to(operatorChat)
	require.Contains(t, operatorTexts[len(operatorTexts)-1], "успешно закрыт")
}

func TestReplyPreviewCutsOnRuneBoundary(t *testing.T) {
	file := persistence.NewTicketFile(filepath.Join(t.TempDir(), "tickets.json"), zap.NewNop())
	store, err := repository.NewTicketStore(file, zap.NewNop())
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher()
	var replied []events.Event
	dispatcher.Subscribe(events.EventTicketReplied, func(_ context.Context, event events.Event) error {
		replied = append(replied, event)
		return nil
	})

	router := service.NewTicketRouter(service.RouterDependencies{
		Store:        store,
		Messenger:    newFakeMessenger(),
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
		OperatorChat: operatorChat,
	})
	ctx := context.Background()

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", time.Now())))
	ticket, ok := store.FindOpenFor(42)
	require.True(t, ok)

	// Long Cyrillic text, two bytes per letter; the preview must never
	// split a character in half.
	longReply := strings.Repeat("переустановите лаунчер ", 10)
	require.NoError(t, router.HandleOperatorMessage(ctx,
		operatorMessage(fmt.Sprintf("/reply %d %s", ticket.ID, longReply))))

	require.Len(t, replied, 1)
	payload, ok := replied[0].Payload.(events.TicketRepliedPayload)
	require.True(t, ok)
	require.True(t, utf8.ValidString(payload.Preview))
	require.Equal(t, 120, utf8.RuneCountInString(payload.Preview))
	require.True(t, strings.HasSuffix(payload.Preview, "..."))
}

func TestDoubleCloseReportsAlreadyClosed(t *testing.T) {
	router, store, messenger := newRouter(t)
	ctx := context.Background()

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", time.Now())))
	ticket, ok := store.FindOpenFor(42)
	require.True(t, ok)

	closeCmd := operatorMessage(fmt.Sprintf("/close %d", ticket.ID))
	require.NoError(t, router.HandleOperatorMessage(ctx, closeCmd))
	require.NoError(t, router.HandleOperatorMessage(ctx, closeCmd))

	operatorTexts := messenger.to(operatorChat)
	require.Contains(t, operatorTexts[len(operatorTexts)-1], fmt.Sprintf("Тикет №%d уже закрыт", ticket.ID))
}

func TestNonCommandOperatorTextIgnored(t *testing.T) {
	router, _, messenger := newRouter(t)
	ctx := context.Background()

	require.NoError(t, router.HandleOperatorMessage(ctx, operatorMessage("let's discuss this one")))
	require.Empty(t, messenger.sent)
}

func TestOperatorCommandsOnlyFromOperatorChat(t *testing.T) {
	router, store, _ := newRouter(t)
	ctx := context.Background()

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", time.Now())))
	ticket, ok := store.FindOpenFor(42)
	require.True(t, ok)

	// A /close sent from a private chat must not touch the ticket.
	stray := transport.Inbound{SenderID: 42, ChatID: 42, Text: fmt.Sprintf("/close %d", ticket.ID)}
	require.NoError(t, router.HandleOperatorMessage(ctx, stray))

	after, err := store.Get(ticket.ID)
	require.NoError(t, err)
	require.False(t, after.Closed)
}

func TestTransportFailureDoesNotRollBackMutation(t *testing.T) {
	router, store, messenger := newRouter(t)
	ctx := context.Background()

	// Operator channel is unreachable; the ticket must still be created.
	messenger.failFor[operatorChat] = errors.New("network down")

	require.NoError(t, router.HandleUserMessage(ctx, userMessage(42, "launcher crashes", time.Now())))

	ticket, ok := store.FindOpenFor(42)
	require.True(t, ok)
	require.Equal(t, "launcher crashes", ticket.Problem)

	// The requester acknowledgment still went out.
	userTexts := messenger.to(42)
	require.Len(t, userTexts, 1)
	require.True(t, strings.Contains(userTexts[0], "принят"))
}
