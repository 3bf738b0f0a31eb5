package dto

import (
	"github.com/iCCupCalico/bot/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// TicketSummary response item for the listing endpoint.
type TicketSummary struct {
	ID        int64  `json:"id"`
	Requester string `json:"requester"`
	CreatedAt string `json:"created_at"`
	Problem   string `json:"problem"`
	Updates   int    `json:"updates"`
	Closed    bool   `json:"closed"`
}

// TicketUpdate is a follow-up message in the detail view.
type TicketUpdate struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// TicketDetail provides full ticket info.
type TicketDetail struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Username  *string        `json:"username"`
	FullName  *string        `json:"full_name"`
	CreatedAt string         `json:"created_at"`
	Problem   string         `json:"problem"`
	Updates   []TicketUpdate `json:"updates"`
	Closed    bool           `json:"closed"`
}

// ReplyRequest payload for the reply endpoint.
type ReplyRequest struct {
	Text string `json:"text"`
}

// Summarize maps a ticket to its listing form.
func Summarize(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:        ticket.ID,
		Requester: ticket.Requester.Label(),
		CreatedAt: ticket.CreatedAt.Format(domain.TimeLayout),
		Problem:   ticket.Problem,
		Updates:   len(ticket.Updates),
		Closed:    ticket.Closed,
	}
}

// Detail maps a ticket to its detail form.
func Detail(ticket *domain.Ticket) TicketDetail {
	updates := make([]TicketUpdate, 0, len(ticket.Updates))
	for _, update := range ticket.Updates {
		updates = append(updates, TicketUpdate{
			Time:    update.At.Format(domain.TimeLayout),
			Message: update.Message,
		})
	}
	return TicketDetail{
		ID:        ticket.ID,
		UserID:    ticket.Requester.ID,
		Username:  ticket.Requester.Username,
		FullName:  ticket.Requester.FullName,
		CreatedAt: ticket.CreatedAt.Format(domain.TimeLayout),
		Problem:   ticket.Problem,
		Updates:   updates,
		Closed:    ticket.Closed,
	}
}
