package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dantte-lp/gofix/internal/session"
)

// ErrDuplicateSession is returned by Add when a session with the same ID is
// already registered.
var ErrDuplicateSession = fmt.Errorf("registry: session already registered")

// ErrSessionNotFound is returned by Remove when no session is
// registered under the given ID.
var ErrSessionNotFound = fmt.Errorf("registry: session not found")

// entry pairs a session with the cancellation function for whatever
// background work (Tick loop, reconnect loop) the supervisor started on its
// behalf.
type entry struct {
	session *session.Session
	cancel  context.CancelFunc
}

// Registry is the single source of truth for every session this process
// manages, indexed by SessionID for the acceptor's reversed-CompID dispatch
// and by the admin surface for inspection.
type Registry struct {
	mu       sync.RWMutex
	sessions map[session.ID]*entry
	logger   *slog.Logger
}

// New returns an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[session.ID]*entry),
		logger:   logger.With(slog.String("component", "registry")),
	}
}

// Add registers sess under its own ID and starts the supervisor goroutine
// returned by run (in fixd: the Tick loop, plus the reconnect loop for an
// initiator; an acceptor's connections arrive via the listener). The
// goroutine receives a context cancelled when the session is later removed
// or the registry is closed.
func (r *Registry) Add(ctx context.Context, sess *session.Session, run func(context.Context)) error {
	id := sess.ID()

	r.mu.Lock()
	if _, dup := r.sessions[id]; dup {
		r.mu.Unlock()
		return fmt.Errorf("registry: add %s: %w", id, ErrDuplicateSession)
	}
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.sessions[id] = &entry{session: sess, cancel: cancel}
	r.mu.Unlock()

	if run != nil {
		go run(sessCtx)
	}
	r.logger.Info("session registered", slog.String("session", id.String()))
	return nil
}

// Remove cancels the session's supervisor goroutine, disconnects it, and
// drops it from the registry.
func (r *Registry) Remove(ctx context.Context, id session.ID) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: remove %s: %w", id, ErrSessionNotFound)
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	e.cancel()
	e.session.Disconnect(ctx, "session removed")
	r.logger.Info("session unregistered", slog.String("session", id.String()))
	return nil
}

// Lookup returns the session registered under id.
func (r *Registry) Lookup(id session.ID) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// LookupReversed derives the local SessionID an inbound connection claims to
// speak to by reversing peerClaim (SenderCompID/TargetCompID as seen in its
// Logon) and looks it up (spec.md §4.6: "acceptor derives SessionID by
// reversing its CompIDs").
func (r *Registry) LookupReversed(peerClaim session.ID) (*session.Session, bool) {
	return r.Lookup(peerClaim.Reversed())
}

// All returns every registered session, in no particular order.
func (r *Registry) All() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	return out
}

// Close cancels every session's supervisor goroutine and disconnects it,
// emptying the registry. Used during process shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	entries := r.sessions
	r.sessions = make(map[session.ID]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		e.cancel()
		e.session.Disconnect(ctx, "registry closed")
		r.logger.Info("session unregistered", slog.String("session", id.String()))
	}
}
