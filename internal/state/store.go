package state

import (
	"context"
	"log"
	"sync"

	"schoolportal/internal/metrics"
)

// Change is delivered to subscribers after every dispatch.
type Change struct {
	Action Action
	State  State
}

// Store holds the current State. Dispatches are serialised.
type Store struct {
	mu        sync.Mutex
	state     State
	subs      map[chan Change]struct{}
	persister Persister
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister keeps the signed-in user in p across restarts.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger logs every dispatched action type to l.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(opts ...Option) *Store {
	s := &Store{state: Initial(), subs: make(map[chan Change]struct{})}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and returns the new snapshot. LOGIN and LOGOUT also
// save or clear the persisted user; a persistence failure is logged and
// does not undo the transition.
func (s *Store) Dispatch(ctx context.Context, a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)
	s.metrics.Dispatched(string(a.Type()))
	if s.logger != nil {
		s.logger.Printf("dispatch %s", a.Type())
	}
	s.persist(ctx, a)

	ch := Change{Action: a, State: s.state}
	for sub := range s.subs {
		select {
		case sub <- ch:
		default:
			log.Printf("state: subscriber lagging, dropped %s", a.Type())
		}
	}
	return s.state
}

func (s *Store) persist(ctx context.Context, a Action) {
	if s.persister == nil {
		return
	}
	var err error
	switch a := a.(type) {
	case Login:
		err = s.persister.Save(ctx, a.User)
	case Logout:
		err = s.persister.Clear(ctx)
	default:
		return
	}
	if err != nil {
		log.Printf("state: persist %s: %v", a.Type(), err)
	}
}

// Subscribe returns a channel receiving every change until ctx is done,
// after which the channel is closed. Changes are dropped for a subscriber
// whose buffer is full.
func (s *Store) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}
