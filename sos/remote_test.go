package sos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petsos/models"
)

type fakeRepo struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]models.SOSCase
	saves   int
	failErr error
	listErr error

	block   chan struct{} // when set, SaveCase waits on it
	entered chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[uuid.UUID]models.SOSCase)}
}

func (r *fakeRepo) SaveCase(ctx context.Context, c models.SOSCase) error {
	if r.block != nil {
		r.entered <- struct{}{}
		<-r.block
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.saves++
	r.docs[c.ID] = c.Clone()
	return nil
}

func (r *fakeRepo) ListCases(ctx context.Context) ([]models.SOSCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.SOSCase, 0, len(r.docs))
	for _, c := range r.docs {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (r *fakeRepo) setFailure(err error) {
	r.mu.Lock()
	r.failErr = err
	r.mu.Unlock()
}

func (r *fakeRepo) doc(id uuid.UUID) (models.SOSCase, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.docs[id]
	return c, ok
}

func newRemote(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	svc, err := NewRemoteService(context.Background(), repo, WithClock(newTickingClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestRemoteService_StampsSyncedAt(t *testing.T) {
	repo := newFakeRepo()
	svc := newRemote(t, repo)
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, sampleRequest())
	require.NoError(t, err)
	require.NotNil(t, c.SyncedAt)
	assert.Equal(t, c.UpdatedAt, *c.SyncedAt)
	assert.False(t, c.IsDirty)

	stored, ok := repo.doc(c.ID)
	require.True(t, ok)
	assert.Equal(t, c.ID, stored.ID)
	require.NotNil(t, stored.SyncedAt)

	accepted, err := svc.AcceptCase(ctx, c.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, accepted.SyncedAt.After(*c.SyncedAt))
	stored, _ = repo.doc(c.ID)
	assert.Equal(t, models.StatusAssigned, stored.Status)
	assert.Len(t, stored.Events, 2)
}

func TestRemoteService_SameErrorsAsMemory(t *testing.T) {
	repo := newFakeRepo()
	svc := newRemote(t, repo)
	ctx := context.Background()

	_, err := svc.CompleteCase(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCaseNotFound)

	c, err := svc.CreateCase(ctx, sampleRequest())
	require.NoError(t, err)
	_, err = svc.CompleteCase(ctx, c.ID)
	require.NoError(t, err)
	_, err = svc.AcceptCase(ctx, c.ID, uuid.New())
	assert.ErrorIs(t, err, ErrCaseClosed)
	assert.Equal(t, 2, repo.saves, "rejected transitions are never written")
}

func TestRemoteService_WriteFailureLeavesStateUntouched(t *testing.T) {
	repo := newFakeRepo()
	svc := newRemote(t, repo)
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, sampleRequest())
	require.NoError(t, err)

	sink := newSink()
	_, err = svc.ObserveCases(ctx, sink.handle)
	require.NoError(t, err)
	sink.next(t)

	boom := errors.New("firestore unavailable")
	repo.setFailure(boom)

	_, err = svc.AcceptCase(ctx, c.ID, uuid.New())
	require.ErrorIs(t, err, boom)
	_, err = svc.CreateCase(ctx, sampleRequest())
	require.ErrorIs(t, err, boom)
	svc.RecordBeacon(ctx, c.ID, models.Coordinate{Latitude: 1}, "")

	got, err := svc.FetchCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Len(t, got.Events, 1)
	assert.Nil(t, got.LastKnownLocation)

	cases, err := svc.FetchCases(ctx)
	require.NoError(t, err)
	assert.Len(t, cases, 1)
	sink.expectNone(t)
}

func TestRemoteService_HydratesFromRepository(t *testing.T) {
	repo := newFakeRepo()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	older := models.SOSCase{ID: uuid.New(), Status: models.StatusPending, CreatedAt: base}
	newer := models.SOSCase{ID: uuid.New(), Status: models.StatusAssigned, CreatedAt: base.Add(time.Minute)}
	repo.docs[older.ID] = older
	repo.docs[newer.ID] = newer

	svc := newRemote(t, repo)
	cases, err := svc.FetchCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, newer.ID, cases[0].ID)
	assert.Equal(t, older.ID, cases[1].ID)
}

func TestNewRemoteService_Errors(t *testing.T) {
	_, err := NewRemoteService(context.Background(), nil)
	assert.Error(t, err)

	repo := newFakeRepo()
	repo.listErr = errors.New("permission denied")
	_, err = NewRemoteService(context.Background(), repo)
	assert.ErrorIs(t, err, repo.listErr)
}

func TestRemoteService_ContextBoundsAdmission(t *testing.T) {
	repo := newFakeRepo()
	svc := newRemote(t, repo)
	ctx := context.Background()

	repo.block = make(chan struct{})
	repo.entered = make(chan struct{}, 1)

	created := make(chan error, 1)
	go func() {
		_, err := svc.CreateCase(ctx, sampleRequest())
		created <- err
	}()
	<-repo.entered // the engine is now busy writing

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := svc.FetchCases(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(repo.block)
	require.NoError(t, <-created)
	repo.block = nil

	cases, err := svc.FetchCases(ctx)
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}

func TestRemoteService_WriteOutlivesCallerCancellation(t *testing.T) {
	repo := newFakeRepo()
	svc := newRemote(t, repo)

	repo.block = make(chan struct{})
	repo.entered = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		c   models.SOSCase
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := svc.CreateCase(ctx, sampleRequest())
		done <- result{c, err}
	}()
	<-repo.entered // admitted and writing

	cancel()
	close(repo.block)

	res := <-done
	require.NoError(t, res.err)
	require.NotNil(t, res.c.SyncedAt)
	repo.block = nil

	_, stored := repo.doc(res.c.ID)
	assert.True(t, stored)
	cases, err := svc.FetchCases(context.Background())
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}
