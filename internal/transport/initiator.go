package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dantte-lp/gofix/internal/session"
)

// Initiator dials a single fixed peer address and satisfies
// registry.Dialer, letting registry.ReconnectLoop drive when it is called.
type Initiator struct {
	Addr     string
	DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)
	Logger   *slog.Logger
}

// NewInitiator returns an Initiator dialing addr over TCP.
func NewInitiator(addr string, logger *slog.Logger) *Initiator {
	var d net.Dialer
	return &Initiator{
		Addr:     addr,
		DialFunc: d.DialContext,
		Logger:   logger,
	}
}

// Dial implements registry.Dialer: it connects, attaches the connection as
// the session's Responder, and blocks servicing inbound frames until the
// connection drops. It refuses to dial outside the session's configured
// Schedule even if called directly, rather than relying solely on its
// caller to have checked first (spec.md §4.6).
func (in *Initiator) Dial(ctx context.Context, sess *session.Session) error {
	if !sess.InSessionTime(time.Now()) {
		return fmt.Errorf("transport: dial %s: outside session time", in.Addr)
	}

	nc, err := in.DialFunc(ctx, "tcp", in.Addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", in.Addr, err)
	}

	conn := NewConn(nc, in.Logger)
	conn.SetValidateChecksum(sess.ValidatesChecksum())
	if err := sess.SetResponder(ctx, conn); err != nil {
		_ = nc.Close()
		return fmt.Errorf("transport: attach responder for %s: %w", in.Addr, err)
	}

	return conn.Serve(ctx, sess, nil)
}
