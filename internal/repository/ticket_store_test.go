package repository_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/domain"
	"github.com/iCCupCalico/bot/internal/persistence"
	"github.com/iCCupCalico/bot/internal/repository"
	"github.com/iCCupCalico/bot/pkg/util"
)

func newStore(t *testing.T) (*repository.TicketStore, *persistence.TicketFile) {
	t.Helper()
	file := persistence.NewTicketFile(filepath.Join(t.TempDir(), "tickets.json"), zap.NewNop())
	store, err := repository.NewTicketStore(file, zap.NewNop())
	require.NoError(t, err)
	return store, file
}

func requesterWithID(id int64) domain.Requester {
	return domain.Requester{ID: id}
}

func TestCreateAssignsTimeDerivedID(t *testing.T) {
	store, _ := newStore(t)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	ticket, err := store.Create(requesterWithID(42), "launcher crashes", now)
	require.NoError(t, err)
	require.Equal(t, now.Unix(), ticket.ID)
	require.False(t, ticket.Closed)
	require.Empty(t, ticket.Updates)
	require.Equal(t, "launcher crashes", ticket.Problem)
}

func TestCreateDisambiguatesCollidingIDs(t *testing.T) {
	store, _ := newStore(t)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	first, err := store.Create(requesterWithID(1), "a", now)
	require.NoError(t, err)

	second, err := store.Create(requesterWithID(2), "b", now)
	require.NoError(t, err)
	require.Equal(t, first.ID+1, second.ID, "same-second creation gets the next free id")
}

func TestAppendUpdateKeepsOrder(t *testing.T) {
	store, _ := newStore(t)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	ticket, err := store.Create(requesterWithID(7), "cannot connect", now)
	require.NoError(t, err)

	for i, text := range []string{"first", "second", "third"} {
		updated, err := store.AppendUpdate(ticket.ID, text, now.Add(time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
		require.Len(t, updated.Updates, i+1)
	}

	final, err := store.Get(ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "first", final.Updates[0].Message)
	require.Equal(t, "second", final.Updates[1].Message)
	require.Equal(t, "third", final.Updates[2].Message)
}

func TestAppendUpdateErrors(t *testing.T) {
	store, _ := newStore(t)
	now := time.Now()

	_, err := store.AppendUpdate(999, "hello", now)
	require.Equal(t, util.CodeNotFound, util.CodeOf(err))

	ticket, err := store.Create(requesterWithID(7), "cannot connect", now)
	require.NoError(t, err)
	_, err = store.Close(ticket.ID)
	require.NoError(t, err)

	_, err = store.AppendUpdate(ticket.ID, "too late", now)
	require.Equal(t, util.CodeAlreadyClosed, util.CodeOf(err))
}

func TestCloseReportsAlreadyClosedOnSecondCall(t *testing.T) {
	store, _ := newStore(t)

	ticket, err := store.Create(requesterWithID(7), "cannot connect", time.Now())
	require.NoError(t, err)

	closed, err := store.Close(ticket.ID)
	require.NoError(t, err)
	require.True(t, closed.Closed)

	_, err = store.Close(ticket.ID)
	require.Equal(t, util.CodeAlreadyClosed, util.CodeOf(err))

	_, err = store.Close(12345)
	require.Equal(t, util.CodeNotFound, util.CodeOf(err))
}

func TestAtMostOneOpenTicketPerRequester(t *testing.T) {
	store, _ := newStore(t)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	first, created, err := store.Record(requesterWithID(7), "cannot connect", now)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.Record(requesterWithID(7), "still cannot connect", now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, created, "second message joins the open ticket")
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Updates, 1)
	require.Equal(t, "still cannot connect", second.Updates[0].Message)
	require.Equal(t, "cannot connect", second.Problem, "problem stays the first message")

	open := 0
	for _, ticket := range store.List() {
		if ticket.Requester.ID == 7 && !ticket.Closed {
			open++
		}
	}
	require.Equal(t, 1, open)
}

func TestClosedTicketStartsFreshOne(t *testing.T) {
	store, _ := newStore(t)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	first, created, err := store.Record(requesterWithID(42), "launcher crashes", now)
	require.NoError(t, err)
	require.True(t, created)

	_, err = store.Close(first.ID)
	require.NoError(t, err)

	second, created, err := store.Record(requesterWithID(42), "still happening", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, created, "messages after closure open a new ticket")
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, "still happening", second.Problem)
}

func TestFindOpenFor(t *testing.T) {
	store, _ := newStore(t)
	now := time.Now()

	_, ok := store.FindOpenFor(42)
	require.False(t, ok)

	ticket, err := store.Create(requesterWithID(42), "launcher crashes", now)
	require.NoError(t, err)

	found, ok := store.FindOpenFor(42)
	require.True(t, ok)
	require.Equal(t, ticket.ID, found.ID)

	_, err = store.Close(ticket.ID)
	require.NoError(t, err)
	_, ok = store.FindOpenFor(42)
	require.False(t, ok)
}

func TestPersistReloadRoundTrip(t *testing.T) {
	store, file := newStore(t)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	created, err := store.Create(domain.Requester{ID: 42}, "launcher crashes", now)
	require.NoError(t, err)
	_, err = store.AppendUpdate(created.ID, "still happening", now.Add(time.Minute))
	require.NoError(t, err)

	// A second store on the same file sees exactly the same set.
	reopened, err := repository.NewTicketStore(file, zap.NewNop())
	require.NoError(t, err)

	ticket, err := reopened.Get(created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Problem, ticket.Problem)
	require.Len(t, ticket.Updates, 1)
	require.Equal(t, "still happening", ticket.Updates[0].Message)
}

func TestReloadPicksUpOutOfBandChanges(t *testing.T) {
	file := persistence.NewTicketFile(filepath.Join(t.TempDir(), "tickets.json"), zap.NewNop())
	store, err := repository.NewTicketStore(file, zap.NewNop())
	require.NoError(t, err)

	other, err := repository.NewTicketStore(file, zap.NewNop())
	require.NoError(t, err)
	ticket, err := other.Create(domain.Requester{ID: 9}, "written by another process", time.Now())
	require.NoError(t, err)

	_, err = store.Get(ticket.ID)
	require.Equal(t, util.CodeNotFound, util.CodeOf(err))

	require.NoError(t, store.Reload())
	loaded, err := store.Get(ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "written by another process", loaded.Problem)
}

func TestMutationsReturnClones(t *testing.T) {
	store, _ := newStore(t)
	now := time.Now()

	ticket, err := store.Create(requesterWithID(5), "problem", now)
	require.NoError(t, err)

	ticket.Problem = "mutated by caller"
	ticket.Closed = true

	stored, err := store.Get(ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "problem", stored.Problem)
	require.False(t, stored.Closed)
}
