package transport

import (
	"context"
	"time"
)

// Inbound is a single incoming chat message reduced to what routing needs.
type Inbound struct {
	SenderID   int64
	Username   string
	FullName   string
	ChatID     int64
	Text       string
	ReceivedAt time.Time
}

// Messenger sends outbound chat messages. Delivery is best-effort: a failed
// send never rolls back the ticket mutation it reports on.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) (int, error)
	Typing(ctx context.Context, chatID int64) error
}
