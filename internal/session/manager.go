// Package session tracks which owners have a running reconciliation loop in a
// long-lived process such as the HTTP server.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/engine"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/reconciler"
)

var ErrClosed = errors.New("session manager is shut down")

// session is one owner's slot. ready is closed once the loop has started, or
// once a start that lost its slot has stopped its loop again.
type session struct {
	ready    chan struct{}
	handle   *reconciler.Handle
	lastSeen time.Time
}

type Manager struct {
	engine      *engine.Engine
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type Option func(*Manager)

// WithIdleTimeout sets how long an owner may go without a request before its
// loop is stopped. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

func NewManager(e *engine.Engine, opts ...Option) *Manager {
	m := &Manager{
		engine:      e,
		idleTimeout: constants.SessionIdleTimeout,
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate starts the reconciliation loop for owner unless one is already
// running, and reports whether it started a new one. Every call counts as
// activity for idle expiry. The loop outlives ctx's cancellation so a request
// context can be passed directly.
//
// The eager reconcile runs outside the manager lock, so one owner's first
// request never holds up another owner's.
func (m *Manager) Activate(ctx context.Context, owner string) (bool, error) {
	now := m.engine.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	if s, ok := m.sessions[owner]; ok {
		s.lastSeen = now
		m.mu.Unlock()
		// Requests racing the first one still wait for its eager reconcile
		<-s.ready
		return false, nil
	}
	s := &session{ready: make(chan struct{}), lastSeen: now}
	m.sessions[owner] = s
	m.mu.Unlock()

	h := m.engine.StartReconciliationLoop(context.WithoutCancel(ctx), owner, reconciler.OnResult(func(reconciler.Result) {
		m.expireIfIdle(owner, s)
	}))

	m.mu.Lock()
	if m.sessions[owner] != s {
		// End or StopAll took the slot while the loop was starting
		closed := m.closed
		m.mu.Unlock()
		h.Stop()
		close(s.ready)
		if closed {
			return false, ErrClosed
		}
		return false, nil
	}
	s.handle = h
	close(s.ready)
	m.mu.Unlock()

	logger.ForOwner("session", owner).Debug("Session activated")
	return true, nil
}

// expireIfIdle runs after every pass of owner's loop. The loop cannot stop
// itself from its own goroutine, so the stop is handed off.
func (m *Manager) expireIfIdle(owner string, s *session) {
	if m.idleTimeout <= 0 {
		return
	}
	now := m.engine.Now()

	m.mu.Lock()
	if m.sessions[owner] != s || s.handle == nil || now.Sub(s.lastSeen) < m.idleTimeout {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, owner)
	idle := now.Sub(s.lastSeen)
	m.mu.Unlock()

	go func() {
		s.handle.Stop()
		logger.ForOwner("session", owner).Info("Session expired", "idle", idle)
	}()
}

// End stops owner's loop, if any, and reports whether one was running.
func (m *Manager) End(owner string) bool {
	m.mu.Lock()
	s, ok := m.sessions[owner]
	delete(m.sessions, owner)
	m.mu.Unlock()

	if !ok {
		return false
	}
	<-s.ready
	m.engine.StopReconciliationLoop(s.handle)
	logger.ForOwner("session", owner).Debug("Session ended")
	return true
}

// Active returns the owners with a running loop, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make([]string, 0, len(m.sessions))
	for owner := range m.sessions {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// StopAll stops every loop concurrently and refuses further activations.
// It returns ctx's error if some loop had not exited before ctx was done.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for owner, s := range sessions {
		g.Go(func() error {
			select {
			case <-s.ready:
			case <-gctx.Done():
				logger.Warn("Reconciliation loop did not start in time", "owner", owner)
				return gctx.Err()
			}
			// A start that lost its slot has already stopped its own loop
			if s.handle == nil {
				return nil
			}
			go s.handle.Stop()
			select {
			case <-s.handle.Done():
				return nil
			case <-gctx.Done():
				logger.Warn("Reconciliation loop did not stop in time", "owner", owner)
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	if err == nil {
		logger.Info("All sessions stopped", "count", len(sessions))
	}
	return err
}
