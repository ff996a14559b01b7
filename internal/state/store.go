package state

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Reducer folds an action into the state.
type Reducer func(State, Action) State

// Dispatcher is what thunks see of the store.
type Dispatcher interface {
	Dispatch(a Action) State
	GetState() State
	// Begin dispatches a request action, first stamping it with a fresh
	// sequence number when it carries none, and returns it as dispatched.
	Begin(a Action) Action
}

// Thunk is an asynchronous action. It returns the terminal action it
// dispatched.
type Thunk func(ctx context.Context, d Dispatcher) Action

// Store owns one state tree. Dispatch is serialized: one action is fully
// reduced before the next begins.
type Store struct {
	mu      sync.Mutex
	state   State
	reducer Reducer
	seq     uint64 // guarded by mu

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int

	logger *zap.Logger
}

func NewStore(initial State, logger *zap.Logger) *Store {
	return NewStoreWithReducer(initial, Reduce, logger)
}

func NewStoreWithReducer(initial State, reducer Reducer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initial.IndividualTraces == nil {
		initial.IndividualTraces = Keyed{}
	}
	if initial.IndividualPhotos == nil {
		initial.IndividualPhotos = Keyed{}
	}
	return &Store{
		state:   initial,
		reducer: reducer,
		subs:    make(map[int]func(State)),
		logger:  logger,
	}
}

func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = s.reducer(s.state, a)
	next := s.state
	s.mu.Unlock()

	s.notify(a, next)
	return next
}

// Begin issues the sequence number and reduces the action under one lock,
// so a later-issued request can never be reduced before an earlier one.
// Sequences start at 1.
func (s *Store) Begin(a Action) Action {
	s.mu.Lock()
	if a.Seq == 0 {
		s.seq++
		a.Seq = s.seq
	}
	s.state = s.reducer(s.state, a)
	next := s.state
	s.mu.Unlock()

	s.notify(a, next)
	return a
}

func (s *Store) notify(a Action, next State) {
	fields := []zap.Field{zap.String("action", a.Type())}
	if a.ID != "" {
		fields = append(fields, zap.String("id", a.ID))
	}
	if a.Seq != 0 {
		fields = append(fields, zap.Uint64("seq", a.Seq))
	}
	if a.Err != nil {
		fields = append(fields, zap.Error(a.Err))
	}
	s.logger.Debug("dispatch", fields...)

	s.subsMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
}

func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every dispatch and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Run executes a thunk against the store.
func (s *Store) Run(ctx context.Context, t Thunk) Action {
	return t(ctx, s)
}
