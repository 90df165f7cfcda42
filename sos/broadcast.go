package sos

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petsos/models"
)

// Handler receives a full snapshot of all cases, newest first.
type Handler func(snapshot []models.SOSCase)

// subscriber delivers snapshots to one handler on its own goroutine. The mailbox
// is unbounded so a slow handler never stalls the engine or other subscribers.
type subscriber struct {
	id      uuid.UUID
	handler Handler
	logger  *logrus.Entry

	mu    sync.Mutex
	queue [][]models.SOSCase

	wake     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
}

func newSubscriber(handler Handler, logger *logrus.Entry) *subscriber {
	id := uuid.New()
	return &subscriber{
		id:      id,
		handler: handler,
		logger:  logger.WithField("observer", id),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

func (s *subscriber) enqueue(snapshot []models.SOSCase) {
	s.mu.Lock()
	s.queue = append(s.queue, snapshot)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() ([]models.SOSCase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	snapshot := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return snapshot, true
}

func (s *subscriber) stopped() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *subscriber) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}
		for !s.stopped() {
			snapshot, ok := s.next()
			if !ok {
				break
			}
			s.deliver(snapshot)
		}
	}
}

// deliver runs the handler once. A panicking handler loses that snapshot only;
// later snapshots and other subscribers are unaffected.
func (s *subscriber) deliver(snapshot []models.SOSCase) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.WithField("panic", p).Error("observer handler panicked")
		}
	}()
	s.handler(snapshot)
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// registry is owned by the engine goroutine; it needs no locking of its own.
type registry struct {
	subs   map[uuid.UUID]*subscriber
	wg     sync.WaitGroup
	logger *logrus.Entry
}

func newRegistry(logger *logrus.Entry) *registry {
	return &registry{
		subs:   make(map[uuid.UUID]*subscriber),
		logger: logger,
	}
}

func (r *registry) add(handler Handler) *subscriber {
	s := newSubscriber(handler, r.logger)
	r.subs[s.id] = s
	r.wg.Add(1)
	go s.run(&r.wg)
	return s
}

// remove reports whether id was registered.
func (r *registry) remove(id uuid.UUID) bool {
	s, ok := r.subs[id]
	if !ok {
		return false
	}
	delete(r.subs, id)
	s.stop()
	return true
}

func (r *registry) len() int { return len(r.subs) }

// publish hands every subscriber its own copy of snapshot.
func (r *registry) publish(snapshot []models.SOSCase) {
	for _, s := range r.subs {
		s.enqueue(cloneSnapshot(snapshot))
	}
}

// closeAll stops every subscriber and waits for in-flight deliveries to return.
func (r *registry) closeAll() {
	for id, s := range r.subs {
		delete(r.subs, id)
		s.stop()
	}
	r.wg.Wait()
}

func cloneSnapshot(in []models.SOSCase) []models.SOSCase {
	out := make([]models.SOSCase, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
