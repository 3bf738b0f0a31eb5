package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used in the durable ticket file and in
// operator-facing notifications.
const TimeLayout = "2006-01-02 15:04:05"

// Requester identifies the user who opened a ticket. It is captured once at
// creation and never updated afterwards.
type Requester struct {
	ID       int64
	Username *string
	FullName *string
}

// Label renders the requester for operator notifications.
func (r Requester) Label() string {
	name := ""
	if r.FullName != nil {
		name = strings.TrimSpace(*r.FullName)
	}
	if r.Username != nil && *r.Username != "" {
		if name == "" {
			return "@" + *r.Username
		}
		return fmt.Sprintf("%s (@%s)", name, *r.Username)
	}
	if name == "" {
		return fmt.Sprintf("id%d", r.ID)
	}
	return name
}

// Update is a follow-up message appended to an open ticket.
type Update struct {
	At      time.Time
	Message string
}

// Ticket is the aggregate for a single support case: one problem report and
// any number of follow-up messages from the same requester.
type Ticket struct {
	ID        int64
	Requester Requester
	CreatedAt time.Time
	Problem   string
	Updates   []Update
	Closed    bool
}

// Open reports whether the ticket still accepts follow-ups.
func (t *Ticket) Open() bool {
	return !t.Closed
}

// Clone returns a deep copy; the store hands out clones so no caller can hold
// a live reference into the canonical set.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	copied := *t
	if t.Requester.Username != nil {
		username := *t.Requester.Username
		copied.Requester.Username = &username
	}
	if t.Requester.FullName != nil {
		fullName := *t.Requester.FullName
		copied.Requester.FullName = &fullName
	}
	if t.Updates != nil {
		copied.Updates = make([]Update, len(t.Updates))
		copy(copied.Updates, t.Updates)
	}
	return &copied
}
