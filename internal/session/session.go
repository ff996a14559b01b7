// Package session keeps one state store per dashboard login, persists
// the authenticated user across restarts and keeps the profile fresh.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/repository"
	"observe/dashboard/internal/state"
)

var ErrNotFound = errors.New("session not found or expired")

// Session is one logged-in dashboard user.
type Session struct {
	ID    uuid.UUID
	Store *state.Store

	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Snapshot returns the current credentials.
func (s *Session) Snapshot() state.Session {
	return s.Store.GetState().Session()
}

type Options struct {
	TTL             time.Duration
	RefreshInterval time.Duration
}

type Manager struct {
	api    *action.API
	repo   repository.SessionStore
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(api *action.API, repo repository.SessionStore, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		api:      api,
		repo:     repo,
		opts:     opts,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open authenticates accessToken against the Observe API and registers a
// new session for it.
func (m *Manager) Open(ctx context.Context, accessToken string) (*Session, error) {
	store := state.NewStore(state.Initial(), m.logger)
	rec := store.Run(ctx, m.api.Authenticate(accessToken))
	if rec.Err != nil {
		return nil, fmt.Errorf("authenticate: %w", rec.Err)
	}
	if !store.GetState().Session().Authenticated {
		return nil, fmt.Errorf("authenticate: %w", action.ErrUnauthenticated)
	}

	id := uuid.New()
	if err := m.save(ctx, id, store.GetState()); err != nil {
		return nil, err
	}
	s := m.start(id, store)
	m.logger.Info("session opened",
		zap.String("session_id", s.ID.String()),
		zap.String("osm_id", s.Snapshot().OsmID))
	return s, nil
}

// Get returns a live session, restoring it from the session store when
// this process has not seen it yet.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		if !s.Snapshot().Authenticated {
			m.drop(ctx, s)
			return nil, ErrNotFound
		}
		touched, err := m.repo.Touch(ctx, id, m.opts.TTL)
		if err != nil {
			m.logger.Warn("touch session", zap.String("session_id", id.String()), zap.Error(err))
			return s, nil
		}
		if !touched {
			// Expired, or closed by another instance.
			m.stop(s)
			return nil, ErrNotFound
		}
		return s, nil
	}

	data, err := m.repo.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	initial, err := decodeState(data)
	if err != nil {
		m.logger.Warn("discarding unreadable session", zap.String("session_id", id.String()), zap.Error(err))
		_ = m.repo.Delete(ctx, id)
		return nil, ErrNotFound
	}
	if !initial.Session().Authenticated {
		_ = m.repo.Delete(ctx, id)
		return nil, ErrNotFound
	}

	if _, err := m.repo.Touch(ctx, id, m.opts.TTL); err != nil {
		m.logger.Warn("touch session", zap.String("session_id", id.String()), zap.Error(err))
	}
	s = m.start(id, state.NewStore(initial, m.logger))
	m.logger.Info("session restored", zap.String("session_id", id.String()))
	return s, nil
}

// Close logs the session out and forgets it.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		// Stop first so an in-flight refresh cannot land after the logout.
		m.stop(s)
		s.Store.Dispatch(action.Logout())
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("session closed", zap.String("session_id", id.String()))
	return nil
}

// Len is the number of sessions live in this process.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every background loop. Persisted sessions survive.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

// start registers a session and launches its loop. A session already
// registered under id wins.
func (m *Manager) start(id uuid.UUID, store *state.Store) *Session {
	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing
	}
	ctx, cancel := context.WithCancel(m.ctx)
	s := &Session{
		ID:     id,
		Store:  store,
		dirty:  make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.sessions[id] = s
	m.mu.Unlock()

	var mu sync.Mutex
	last := store.GetState().AuthenticatedUser
	unsubscribe := store.Subscribe(func(st state.State) {
		mu.Lock()
		changed := !sameSlot(last, st.AuthenticatedUser)
		last = st.AuthenticatedUser
		mu.Unlock()
		if changed {
			select {
			case s.dirty <- struct{}{}:
			default:
			}
		}
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(s.done)
		defer unsubscribe()
		m.loop(ctx, s)
	}()
	return s
}

func (m *Manager) stop(s *Session) {
	s.cancel()
	<-s.done
	m.unregister(s)
}

// unregister forgets s without waiting for its loop, so the loop itself
// may call it.
func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	if m.sessions[s.ID] == s {
		delete(m.sessions, s.ID)
	}
	m.mu.Unlock()
}

func (m *Manager) drop(ctx context.Context, s *Session) {
	m.stop(s)
	if err := m.repo.Delete(ctx, s.ID); err != nil {
		m.logger.Warn("delete session", zap.String("session_id", s.ID.String()), zap.Error(err))
	}
}

// loop refreshes the profile on every tick and writes the authenticated
// user back whenever it changes. It exits once the persisted record is
// gone; a refresh never brings an expired session back.
func (m *Manager) loop(ctx context.Context, s *Session) {
	var tick <-chan time.Time
	if m.opts.RefreshInterval > 0 {
		ticker := time.NewTicker(m.opts.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if !s.Snapshot().Authenticated {
				continue
			}
			data, err := m.repo.Load(ctx, s.ID)
			if err == nil && data == nil {
				m.expired(s)
				return
			}
			if err := m.api.RefreshProfile()(ctx, s.Store); err != nil && ctx.Err() == nil {
				m.logger.Debug("refresh profile",
					zap.String("session_id", s.ID.String()), zap.Error(err))
			}
		case <-s.dirty:
			live, err := m.persist(ctx, s)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Warn("persist session",
						zap.String("session_id", s.ID.String()), zap.Error(err))
				}
				continue
			}
			if !live {
				m.expired(s)
				return
			}
		}
	}
}

// expired runs on the session's own loop, which returns right after.
func (m *Manager) expired(s *Session) {
	s.cancel()
	m.unregister(s)
	m.logger.Info("session expired", zap.String("session_id", s.ID.String()))
}

// save writes a new session record with a full TTL.
func (m *Manager) save(ctx context.Context, id uuid.UUID, st state.State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	if err := m.repo.Save(ctx, id, data, m.opts.TTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// persist writes the authenticated user slot over the existing record
// without extending it, or deletes the record once the session has
// logged out. It reports false when the record no longer exists.
func (m *Manager) persist(ctx context.Context, s *Session) (bool, error) {
	st := s.Store.GetState()
	if !st.Session().Authenticated {
		return true, m.repo.Delete(ctx, s.ID)
	}
	data, err := encodeState(st)
	if err != nil {
		return true, err
	}
	return m.repo.Replace(ctx, s.ID, data)
}

// sameSlot ignores ReceivedAt: a refresh that returns the same profile is
// not a change worth writing.
func sameSlot(a, b state.Slot) bool {
	return a.Fetching == b.Fetching &&
		a.Fetched == b.Fetched &&
		(a.Err == nil) == (b.Err == nil) &&
		string(a.Data) == string(b.Data)
}

type persistedSlot struct {
	Fetched    bool            `json:"fetched"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

type persistedState struct {
	AuthenticatedUser persistedSlot `json:"authenticatedUser"`
}

func encodeState(st state.State) ([]byte, error) {
	slot := st.AuthenticatedUser
	return json.Marshal(persistedState{
		AuthenticatedUser: persistedSlot{
			Fetched:    slot.Fetched,
			Data:       slot.Data,
			ReceivedAt: slot.ReceivedAt,
		},
	})
}

func decodeState(data []byte) (state.State, error) {
	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		return state.State{}, err
	}
	st := state.Initial()
	if len(p.AuthenticatedUser.Data) > 0 {
		st.AuthenticatedUser = state.Slot{
			Fetched:    p.AuthenticatedUser.Fetched,
			Data:       p.AuthenticatedUser.Data,
			ReceivedAt: p.AuthenticatedUser.ReceivedAt,
		}
	}
	return st, nil
}
