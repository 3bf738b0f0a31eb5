package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/command"
	"github.com/iCCupCalico/bot/internal/domain"
	"github.com/iCCupCalico/bot/internal/events"
	"github.com/iCCupCalico/bot/internal/repository"
	"github.com/iCCupCalico/bot/internal/transport"
	"github.com/iCCupCalico/bot/pkg/util"
)

// Operator- and requester-facing message templates.
const (
	msgTicketAccepted  = "Спасибо! Ваш тикет №%d принят. Ожидайте ответа."
	msgUpdateAccepted  = "Ваше уточнение добавлено в тикет №%d."
	msgTicketClosed    = "Ваш тикет №%d был закрыт."
	msgReplyToUser     = "Ответ на ваш тикет №%d:\n%s"
	msgRequestFailed   = "Не удалось обработать запрос. Попробуйте позже."
	opMsgNewTicket     = "Новый тикет!\n[%d] %s\nОт: %s\nПроблема: %s"
	opMsgTicketUpdate  = "Обновление тикета №%d от %s:\n%s"
	opMsgReplySent     = "Ответ на тикет №%d успешно отправлен пользователю."
	opMsgTicketNotFnd  = "Тикет с ID %d не найден."
	opMsgAlreadyClosed = "Тикет №%d уже закрыт."
	opMsgCloseDone     = "Тикет №%d успешно закрыт."
	opMsgFailed        = "Не удалось выполнить операцию. Попробуйте позже."
)

// TicketRouter orchestrates the ticket lifecycle: it turns inbound user
// messages into store mutations plus operator notifications, and operator
// commands into store mutations plus requester notifications. The router
// itself is stateless across invocations; every fact it needs lives in the
// store.
type TicketRouter struct {
	store        *repository.TicketStore
	messenger    transport.Messenger
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	operatorChat int64
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Store        *repository.TicketStore
	Messenger    transport.Messenger
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	OperatorChat int64
}

// NewTicketRouter constructs the router.
func NewTicketRouter(deps RouterDependencies) *TicketRouter {
	return &TicketRouter{
		store:        deps.Store,
		messenger:    deps.Messenger,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		operatorChat: deps.OperatorChat,
	}
}

// HandleUserMessage files an inbound support message: a follow-up when the
// requester already has an open ticket, a fresh ticket otherwise. The store
// mutation is the source of truth; outbound sends are best-effort.
func (r *TicketRouter) HandleUserMessage(ctx context.Context, msg transport.Inbound) error {
	requester := requesterFrom(msg)
	now := msg.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}

	ticket, created, err := r.store.Record(requester, msg.Text, now)
	if err != nil {
		r.logger.Error("recording support message failed",
			zap.Int64("requester_id", requester.ID), zap.Error(err))
		r.send(ctx, msg.ChatID, msgRequestFailed)
		return err
	}

	if created {
		r.send(ctx, r.operatorChat, fmt.Sprintf(opMsgNewTicket,
			ticket.ID, ticket.CreatedAt.Format(domain.TimeLayout), requester.Label(), ticket.Problem))
		r.send(ctx, msg.ChatID, fmt.Sprintf(msgTicketAccepted, ticket.ID))
		r.publish(ctx, events.Event{
			Type:        events.EventTicketCreated,
			TicketID:    ticket.ID,
			RequesterID: requester.ID,
			Payload:     events.TicketCreatedPayload{Requester: requester.Label(), Problem: ticket.Problem},
		})
		return nil
	}

	r.send(ctx, r.operatorChat, fmt.Sprintf(opMsgTicketUpdate, ticket.ID, requester.Label(), msg.Text))
	r.send(ctx, msg.ChatID, fmt.Sprintf(msgUpdateAccepted, ticket.ID))
	r.publish(ctx, events.Event{
		Type:        events.EventTicketUpdated,
		TicketID:    ticket.ID,
		RequesterID: requester.ID,
		Payload:     events.TicketUpdatedPayload{Message: msg.Text, Updates: len(ticket.Updates)},
	})
	return nil
}

// HandleOperatorMessage parses operator-channel text and executes the
// resulting intent. Non-command text is silently ignored; malformed commands
// get the literal usage hint back.
func (r *TicketRouter) HandleOperatorMessage(ctx context.Context, msg transport.Inbound) error {
	if msg.ChatID != r.operatorChat {
		return nil
	}

	intent, err := command.Parse(msg.Text)
	if err != nil {
		r.send(ctx, r.operatorChat, util.ToDomainError(err).Message)
		return nil
	}

	switch intent.Kind {
	case command.KindNone:
		return nil
	case command.KindReply:
		return r.handleReply(ctx, intent)
	case command.KindClose:
		return r.handleClose(ctx, intent)
	}
	return nil
}

// handleReply forwards the operator's text to the requester. The reply is a
// one-way notification and is never written to the ticket record.
func (r *TicketRouter) handleReply(ctx context.Context, intent command.Intent) error {
	if err := r.reload(ctx); err != nil {
		return err
	}

	ticket, err := r.store.Get(intent.TicketID)
	if err != nil {
		r.reportStoreError(ctx, intent.TicketID, err)
		return nil
	}

	if _, err := r.messenger.Send(ctx, ticket.Requester.ID, fmt.Sprintf(msgReplyToUser, ticket.ID, intent.Text)); err != nil {
		r.logger.Warn("reply delivery failed",
			zap.Int64("ticket_id", ticket.ID), zap.Int64("requester_id", ticket.Requester.ID), zap.Error(err))
	}
	r.send(ctx, r.operatorChat, fmt.Sprintf(opMsgReplySent, ticket.ID))
	r.publish(ctx, events.Event{
		Type:        events.EventTicketReplied,
		TicketID:    ticket.ID,
		RequesterID: ticket.Requester.ID,
		Payload:     events.TicketRepliedPayload{Preview: preview(intent.Text, 120)},
	})
	return nil
}

func (r *TicketRouter) handleClose(ctx context.Context, intent command.Intent) error {
	if err := r.reload(ctx); err != nil {
		return err
	}

	ticket, err := r.store.Close(intent.TicketID)
	if err != nil {
		r.reportStoreError(ctx, intent.TicketID, err)
		if util.IsExpected(err) {
			return nil
		}
		return err
	}

	if _, err := r.messenger.Send(ctx, ticket.Requester.ID, fmt.Sprintf(msgTicketClosed, ticket.ID)); err != nil {
		r.logger.Warn("close notification failed",
			zap.Int64("ticket_id", ticket.ID), zap.Int64("requester_id", ticket.Requester.ID), zap.Error(err))
	}
	r.send(ctx, r.operatorChat, fmt.Sprintf(opMsgCloseDone, ticket.ID))
	r.publish(ctx, events.Event{
		Type:        events.EventTicketClosed,
		TicketID:    ticket.ID,
		RequesterID: ticket.Requester.ID,
		Payload:     events.TicketClosedPayload{Requester: ticket.Requester.Label()},
	})
	return nil
}

// ReplyToTicket forwards a reply from the admin panel with the same
// ephemeral semantics as the /reply command.
func (r *TicketRouter) ReplyToTicket(ctx context.Context, ticketID int64, text string) error {
	ticket, err := r.store.Get(ticketID)
	if err != nil {
		return err
	}
	if _, err := r.messenger.Send(ctx, ticket.Requester.ID, fmt.Sprintf(msgReplyToUser, ticket.ID, text)); err != nil {
		r.logger.Warn("reply delivery failed",
			zap.Int64("ticket_id", ticket.ID), zap.Int64("requester_id", ticket.Requester.ID), zap.Error(err))
	}
	r.publish(ctx, events.Event{
		Type:        events.EventTicketReplied,
		TicketID:    ticket.ID,
		RequesterID: ticket.Requester.ID,
		Payload:     events.TicketRepliedPayload{Preview: preview(text, 120)},
	})
	return nil
}

// CloseTicket closes a ticket on behalf of the admin panel and notifies the
// requester.
func (r *TicketRouter) CloseTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := r.store.Close(ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := r.messenger.Send(ctx, ticket.Requester.ID, fmt.Sprintf(msgTicketClosed, ticket.ID)); err != nil {
		r.logger.Warn("close notification failed",
			zap.Int64("ticket_id", ticket.ID), zap.Int64("requester_id", ticket.Requester.ID), zap.Error(err))
	}
	r.publish(ctx, events.Event{
		Type:        events.EventTicketClosed,
		TicketID:    ticket.ID,
		RequesterID: ticket.Requester.ID,
		Payload:     events.TicketClosedPayload{Requester: ticket.Requester.Label()},
	})
	return ticket, nil
}

// OpenTicketFor exposes the dedup lookup so the menu layer can route free
// text from a requester with an open ticket back into the support flow.
func (r *TicketRouter) OpenTicketFor(requesterID int64) (*domain.Ticket, bool) {
	return r.store.FindOpenFor(requesterID)
}

func (r *TicketRouter) reload(ctx context.Context) error {
	if err := r.store.Reload(); err != nil {
		r.logger.Error("ticket set reload failed", zap.Error(err))
		r.send(ctx, r.operatorChat, opMsgFailed)
		return err
	}
	return nil
}

// reportStoreError answers the operator: expected errors verbatim, system
// faults generically.
func (r *TicketRouter) reportStoreError(ctx context.Context, ticketID int64, err error) {
	switch util.CodeOf(err) {
	case util.CodeNotFound:
		r.send(ctx, r.operatorChat, fmt.Sprintf(opMsgTicketNotFnd, ticketID))
	case util.CodeAlreadyClosed:
		r.send(ctx, r.operatorChat, fmt.Sprintf(opMsgAlreadyClosed, ticketID))
	default:
		r.logger.Error("ticket operation failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		r.send(ctx, r.operatorChat, opMsgFailed)
	}
}

func (r *TicketRouter) send(ctx context.Context, chatID int64, text string) {
	if _, err := r.messenger.Send(ctx, chatID, text); err != nil {
		r.logger.Warn("outbound notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *TicketRouter) publish(ctx context.Context, event events.Event) {
	if r.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = r.dispatcher.Publish(ctx, event)
}

func requesterFrom(msg transport.Inbound) domain.Requester {
	requester := domain.Requester{ID: msg.SenderID}
	if msg.Username != "" {
		username := msg.Username
		requester.Username = &username
	}
	if msg.FullName != "" {
		fullName := msg.FullName
		requester.FullName = &fullName
	}
	return requester
}

// preview shortens audit payload text, cutting on rune boundaries so
// Cyrillic replies never truncate mid-character.
func preview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
