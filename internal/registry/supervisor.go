package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/dantte-lp/gofix/internal/session"
)

// Dialer fully services one connection attempt for an initiator session: it
// dials the peer, attaches the resulting Responder via sess.SetResponder,
// pumps inbound frames into sess.OnMessage, and returns once the connection
// has dropped (or ctx is cancelled). The transport package supplies the
// concrete implementation; registry only drives the retry cadence.
type Dialer interface {
	Dial(ctx context.Context, sess *session.Session) error
}

// TickLoop calls sess.Tick once per interval until ctx is cancelled. Every
// registered session, initiator or acceptor, runs one of these regardless
// of connection state, since Tick itself no-ops while disconnected
// (spec.md §4.5.2 step 1).
func TickLoop(ctx context.Context, sess *session.Session, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sess.Tick(ctx); err != nil && logger != nil {
				logger.Warn("session tick error", slog.String("session", sess.ID().String()), slog.String("error", err.Error()))
			}
		}
	}
}

// ReconnectLoop drives an initiator session's outbound connection lifecycle
// (spec.md §4.6: "initiator reconnects on ReconnectInterval while within
// SessionTime"). Whenever the session is Disconnected, it asks dialer to
// establish and service a connection; once that call returns (the
// connection dropped, or was never established), it waits
// reconnectInterval before trying again.
func ReconnectLoop(ctx context.Context, sess *session.Session, dialer Dialer, reconnectInterval time.Duration, logger *slog.Logger) {
	if reconnectInterval <= 0 {
		reconnectInterval = 30 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if sess.ConnectionState() == session.ConnectionStateDisconnected && sess.InSessionTime(time.Now()) {
			if err := dialer.Dial(ctx, sess); err != nil && logger != nil {
				logger.Debug("dial attempt failed", slog.String("session", sess.ID().String()), slog.String("error", err.Error()))
			}
		}

		timer.Reset(reconnectInterval)
	}
}
