package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/domain"
	"github.com/iCCupCalico/bot/pkg/util"
)

// TicketFile owns the on-disk representation of the ticket set: a single JSON
// document mapping string ticket id to record. The whole document is the unit
// of persistence; there is no incremental format.
type TicketFile struct {
	path   string
	logger *zap.Logger
}

// NewTicketFile builds the adapter for the given path.
func NewTicketFile(path string, logger *zap.Logger) *TicketFile {
	return &TicketFile{path: path, logger: logger}
}

type updateRecord struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

type ticketRecord struct {
	UserID   int64          `json:"user_id"`
	Username *string        `json:"username"`
	FullName *string        `json:"full_name"`
	Time     string         `json:"time"`
	Problem  string         `json:"problem"`
	Updates  []updateRecord `json:"updates"`
	Closed   bool           `json:"closed"`
}

// Load reads the full ticket set. A missing file is an empty set, not an
// error, so a fresh deployment starts clean.
func (f *TicketFile) Load() (map[int64]*domain.Ticket, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int64]*domain.Ticket{}, nil
		}
		return nil, util.NewPersistenceFailure(err)
	}

	records := map[string]ticketRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, util.NewPersistenceFailure(fmt.Errorf("decoding %s: %w", f.path, err))
	}

	tickets := make(map[int64]*domain.Ticket, len(records))
	for key, record := range records {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, util.NewPersistenceFailure(fmt.Errorf("invalid ticket id %q in %s", key, f.path))
		}
		ticket, err := recordToTicket(id, record)
		if err != nil {
			return nil, err
		}
		tickets[id] = ticket
	}
	f.logger.Debug("ticket set loaded", zap.String("path", f.path), zap.Int("tickets", len(tickets)))
	return tickets, nil
}

// Save atomically replaces the durable copy with the given set. The document
// is written to a temporary file in the same directory and renamed over the
// target, so a concurrent reader never observes a half-written set.
func (f *TicketFile) Save(tickets map[int64]*domain.Ticket) error {
	records := make(map[string]ticketRecord, len(tickets))
	for id, ticket := range tickets {
		records[strconv.FormatInt(id, 10)] = ticketToRecord(ticket)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return util.NewPersistenceFailure(err)
	}

	if err := writeFileAtomic(f.path, data); err != nil {
		return util.NewPersistenceFailure(err)
	}
	return nil
}

// Path returns the configured file location.
func (f *TicketFile) Path() string {
	return f.path
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func ticketToRecord(ticket *domain.Ticket) ticketRecord {
	updates := make([]updateRecord, 0, len(ticket.Updates))
	for _, update := range ticket.Updates {
		updates = append(updates, updateRecord{
			Time:    update.At.Format(domain.TimeLayout),
			Message: update.Message,
		})
	}
	return ticketRecord{
		UserID:   ticket.Requester.ID,
		Username: ticket.Requester.Username,
		FullName: ticket.Requester.FullName,
		Time:     ticket.CreatedAt.Format(domain.TimeLayout),
		Problem:  ticket.Problem,
		Updates:  updates,
		Closed:   ticket.Closed,
	}
}

func recordToTicket(id int64, record ticketRecord) (*domain.Ticket, error) {
	createdAt, err := time.ParseInLocation(domain.TimeLayout, record.Time, time.Local)
	if err != nil {
		return nil, util.NewPersistenceFailure(fmt.Errorf("ticket %d: invalid creation time %q", id, record.Time))
	}
	updates := make([]domain.Update, 0, len(record.Updates))
	for _, update := range record.Updates {
		at, err := time.ParseInLocation(domain.TimeLayout, update.Time, time.Local)
		if err != nil {
			return nil, util.NewPersistenceFailure(fmt.Errorf("ticket %d: invalid update time %q", id, update.Time))
		}
		updates = append(updates, domain.Update{At: at, Message: update.Message})
	}
	return &domain.Ticket{
		ID:        id,
		Requester: domain.Requester{ID: record.UserID, Username: record.Username, FullName: record.FullName},
		CreatedAt: createdAt,
		Problem:   record.Problem,
		Updates:   updates,
		Closed:    record.Closed,
	}, nil
}
