// Package sos implements the SOS dispatch engine: the case store, its state
// machine, the per-case audit trail and live snapshot fan-out to observers.
//
// A Service owns all state on a single goroutine. Every operation is sent to
// that goroutine as a request, so mutations are serialized globally and every
// read or broadcast sees only committed state.
package sos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petsos/models"
)

// CaseService is the capability set shared by the in-memory and the
// Firestore-backed services. Callers must not depend on which one they hold.
type CaseService interface {
	CreateCase(ctx context.Context, req models.SOSRequest) (models.SOSCase, error)
	FetchCases(ctx context.Context) ([]models.SOSCase, error)
	FetchCase(ctx context.Context, id uuid.UUID) (models.SOSCase, error)
	ObserveCases(ctx context.Context, handler Handler) (*Subscription, error)
	CancelCase(ctx context.Context, id uuid.UUID, reason string) (models.SOSCase, error)
	AcceptCase(ctx context.Context, id, riderID uuid.UUID) (models.SOSCase, error)
	DeclineCase(ctx context.Context, id, riderID uuid.UUID)
	MarkEnRoute(ctx context.Context, id, riderID uuid.UUID, etaMinutes *int, distanceKm *float64) (models.SOSCase, error)
	MarkArrived(ctx context.Context, id, riderID uuid.UUID) (models.SOSCase, error)
	CompleteCase(ctx context.Context, id uuid.UUID) (models.SOSCase, error)
	RecordBeacon(ctx context.Context, id uuid.UUID, at models.Coordinate, note string)
	Close() error
}

var _ CaseService = (*Service)(nil)

// Service is the dispatch engine. Create one with NewMemoryService or NewRemoteService.
type Service struct {
	opts    options
	backend string
	repo    CaseRepository // nil for the in-memory service

	requests  chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by the loop goroutine
	store     *caseStore
	observers *registry
}

func newService(backend string, repo CaseRepository, seed []models.SOSCase, opts []Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		opts:     o,
		backend:  backend,
		repo:     repo,
		requests: make(chan func()),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		store:    newCaseStore(),
	}
	s.observers = newRegistry(s.log())
	for _, c := range seed {
		s.store.put(c.Clone())
	}
	s.opts.recorder.SetCases(s.store.len())

	go s.loop()

	s.log().WithField("cases", s.store.len()).Info("SOS service started")
	return s
}

func (s *Service) log() *logrus.Entry {
	return s.opts.logger.WithField("backend", s.backend)
}

func (s *Service) loop() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.requests:
			fn()
		case <-s.quit:
			s.observers.closeAll()
			return
		}
	}
}

// submit runs fn on the engine goroutine and waits for it. ctx only bounds the
// wait for admission: once admitted, fn always runs to completion.
func (s *Service) submit(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}

	select {
	case s.requests <- req:
	case <-s.quit:
		return ErrServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Close stops the engine and every observer. It is safe to call more than once,
// but not from inside a Handler.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.stopped
		s.log().Info("SOS service stopped")
	})
	<-s.stopped
	return nil
}

// FetchCases returns every case, newest first.
func (s *Service) FetchCases(ctx context.Context) ([]models.SOSCase, error) {
	var out []models.SOSCase
	if err := s.submit(ctx, func() { out = s.store.snapshot() }); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCase returns a single case.
func (s *Service) FetchCase(ctx context.Context, id uuid.UUID) (models.SOSCase, error) {
	var (
		out   models.SOSCase
		found bool
	)
	err := s.submit(ctx, func() {
		var c models.SOSCase
		if c, found = s.store.get(id); found {
			out = c.Clone()
		}
	})
	if err != nil {
		return models.SOSCase{}, err
	}
	if !found {
		return models.SOSCase{}, fmt.Errorf("fetch case %s: %w", id, ErrCaseNotFound)
	}
	return out, nil
}

// ObserveCases registers handler. It immediately receives the current snapshot
// and then one snapshot per successful mutation, in mutation order.
func (s *Service) ObserveCases(ctx context.Context, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("observe cases: nil handler")
	}
	var sub *subscriber
	err := s.submit(ctx, func() {
		sub = s.observers.add(handler)
		sub.enqueue(s.store.snapshot())
		s.opts.recorder.SetObservers(s.observers.len())
	})
	if err != nil {
		return nil, err
	}
	s.log().WithField("observer", sub.id).Debug("observer registered")
	return &Subscription{id: sub.id, svc: s}, nil
}

func (s *Service) unsubscribe(id uuid.UUID) {
	var removed bool
	err := s.submit(context.Background(), func() {
		removed = s.observers.remove(id)
		s.opts.recorder.SetObservers(s.observers.len())
	})
	if err == nil && removed {
		s.log().WithField("observer", id).Debug("observer removed")
	}
}

// Subscription is the handle returned by ObserveCases.
type Subscription struct {
	id   uuid.UUID
	svc  *Service
	once sync.Once
}

func (sub *Subscription) ID() uuid.UUID { return sub.id }

// Cancel stops further deliveries. Calling it again, or after the service has
// been closed, is a no-op.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() { sub.svc.unsubscribe(sub.id) })
}

// remoteWriteTimeout bounds a single repository write.
const remoteWriteTimeout = 15 * time.Second

// commit persists c when remote-backed, stores it and broadcasts the new
// snapshot. Nothing is stored or broadcast if persisting fails.
func (s *Service) commit(ctx context.Context, c models.SOSCase, now time.Time) (models.SOSCase, error) {
	if s.repo != nil {
		synced := now
		c.SyncedAt = &synced
		c.IsDirty = false

		// admitted mutations are not abandoned when the caller gives up
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteWriteTimeout)
		err := s.repo.SaveCase(writeCtx, c)
		cancel()
		if err != nil {
			return models.SOSCase{}, fmt.Errorf("persist case %s: %w", c.ID, err)
		}
	}

	s.store.put(c)
	s.opts.recorder.SetCases(s.store.len())
	s.broadcast()
	return c.Clone(), nil
}

func (s *Service) broadcast() {
	s.observers.publish(s.store.snapshot())
	s.opts.recorder.ObserveBroadcast(s.observers.len())
}

// transition describes one state-machine step applied to an existing case.
type transition struct {
	op      string
	guarded bool // enforce the not-closed check
	apply   func(c *models.SOSCase, now time.Time)
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, t transition) (models.SOSCase, error) {
	var (
		out   models.SOSCase
		opErr error
	)
	err := s.submit(ctx, func() {
		current, ok := s.store.get(id)
		if !ok {
			opErr = fmt.Errorf("%s case %s: %w", t.op, id, ErrCaseNotFound)
			return
		}
		if t.guarded && current.Status.IsTerminal() {
			opErr = fmt.Errorf("%s case %s (%s): %w", t.op, id, current.Status, ErrCaseClosed)
			return
		}

		next := current.Clone()
		now := s.opts.clock()
		t.apply(&next, now)
		next.UpdatedAt = now
		out, opErr = s.commit(ctx, next, now)
	})
	if err == nil {
		err = opErr
	}
	s.opts.recorder.ObserveOperation(t.op, err)
	if err != nil {
		return models.SOSCase{}, err
	}
	return out, nil
}

// bestEffort swallows err after logging it.
func (s *Service) bestEffort(op string, id uuid.UUID, err error) {
	if err == nil {
		return
	}
	s.log().WithFields(logrus.Fields{
		"op":      op,
		"case_id": id,
	}).WithError(err).Warn("best-effort operation failed")
}
