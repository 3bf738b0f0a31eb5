package events

import "time"

// EventType enumerates ticket lifecycle event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketUpdated EventType = "ticket_updated"
	EventTicketReplied EventType = "ticket_replied"
	EventTicketClosed  EventType = "ticket_closed"
)

// Event represents a lifecycle event emitted by the router.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	TicketID    int64       `json:"ticket_id"`
	RequesterID int64       `json:"requester_id"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Requester string `json:"requester"`
	Problem   string `json:"problem"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Message string `json:"message"`
	Updates int    `json:"updates"`
}

// TicketRepliedPayload payload. Replies are notifications only; the preview
// exists for the audit log, not for the ticket record.
type TicketRepliedPayload struct {
	Preview string `json:"preview"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Requester string `json:"requester"`
}
