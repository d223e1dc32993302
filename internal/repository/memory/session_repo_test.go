package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/repository/memory"
)

func TestSessionRepo_CreateAssignsIDAndTimestamps(t *testing.T) {
	repo := memory.NewSessionRepo()
	s := &domain.Session{State: domain.SessionStateEmpty}

	require.NoError(t, repo.Create(context.Background(), s))
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateEmpty, got.State)
}

func TestSessionRepo_GetReturnsCopy(t *testing.T) {
	repo := memory.NewSessionRepo()
	s := &domain.Session{State: domain.SessionStateReady}
	require.NoError(t, repo.Create(context.Background(), s))

	got, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	got.Allocation.Assign(domain.ParticipantA, 0)
	got.State = domain.SessionStateFailed

	again, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateReady, again.State)
	assert.Equal(t, 0, again.Allocation.Len())
}

func TestSessionRepo_Update(t *testing.T) {
	repo := memory.NewSessionRepo()
	s := &domain.Session{State: domain.SessionStateEmpty}
	require.NoError(t, repo.Create(context.Background(), s))

	s.State = domain.SessionStateProcessing
	require.NoError(t, repo.Update(context.Background(), s))

	got, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateProcessing, got.State)
}

func TestSessionRepo_NotFound(t *testing.T) {
	repo := memory.NewSessionRepo()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.Session{ID: uuid.New()}), domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), domain.ErrSessionNotFound)
}

func TestSessionRepo_ListAndDelete(t *testing.T) {
	repo := memory.NewSessionRepo()
	ctx := context.Background()
	a := &domain.Session{}
	b := &domain.Session{}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, repo.Delete(ctx, a.ID))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSessionRepo_TTLExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := memory.NewSessionRepo(memory.WithTTL(time.Hour), memory.WithClock(clock.now))
	ctx := context.Background()

	idle := &domain.Session{State: domain.SessionStateReady}
	require.NoError(t, repo.Create(ctx, idle))
	busy := &domain.Session{State: domain.SessionStateProcessing}
	require.NoError(t, repo.Create(ctx, busy))

	clock.advance(90 * time.Minute)

	_, err := repo.GetByID(ctx, idle.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = repo.GetByID(ctx, busy.ID)
	assert.NoError(t, err, "a session being processed never expires")

	fresh := &domain.Session{State: domain.SessionStateEmpty}
	require.NoError(t, repo.Create(ctx, fresh))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.ErrorIs(t, repo.Delete(ctx, idle.ID), domain.ErrSessionNotFound, "sweep removed the expired session")
}

func TestSessionRepo_UpdateRefreshesTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := memory.NewSessionRepo(memory.WithTTL(time.Hour), memory.WithClock(clock.now))
	ctx := context.Background()

	s := &domain.Session{State: domain.SessionStateReady}
	require.NoError(t, repo.Create(ctx, s))
	clock.advance(50 * time.Minute)
	require.NoError(t, repo.Update(ctx, s))
	clock.advance(50 * time.Minute)

	_, err := repo.GetByID(ctx, s.ID)
	assert.NoError(t, err)
}

func TestSessionRepo_MaxSessionsEvictsLeastRecentlyUpdated(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := memory.NewSessionRepo(memory.WithMaxSessions(2), memory.WithClock(clock.now))
	ctx := context.Background()

	first := &domain.Session{State: domain.SessionStateEmpty}
	require.NoError(t, repo.Create(ctx, first))
	clock.advance(time.Minute)
	second := &domain.Session{State: domain.SessionStateEmpty}
	require.NoError(t, repo.Create(ctx, second))
	clock.advance(time.Minute)
	require.NoError(t, repo.Update(ctx, first))
	clock.advance(time.Minute)

	third := &domain.Session{State: domain.SessionStateEmpty}
	require.NoError(t, repo.Create(ctx, third))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = repo.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = repo.GetByID(ctx, first.ID)
	assert.NoError(t, err)
}

func TestSessionRepo_MaxSessionsKeepsProcessingSessions(t *testing.T) {
	repo := memory.NewSessionRepo(memory.WithMaxSessions(1))
	ctx := context.Background()

	busy := &domain.Session{State: domain.SessionStateProcessing}
	require.NoError(t, repo.Create(ctx, busy))
	next := &domain.Session{State: domain.SessionStateEmpty}
	require.NoError(t, repo.Create(ctx, next))

	_, err := repo.GetByID(ctx, busy.ID)
	assert.NoError(t, err)
}
