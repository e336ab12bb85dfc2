package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/dantte-lp/gofix/internal/fixmsg"
	"github.com/dantte-lp/gofix/internal/registry"
)

// Acceptor listens for inbound TCP connections and, on each one's first
// message (which must be a Logon), dispatches it to the registered session
// whose identity matches the peer's reversed CompIDs (spec.md §4.6).
type Acceptor struct {
	ln       net.Listener
	registry *registry.Registry
	logger   *slog.Logger
}

// NewAcceptor starts listening on addr.
func NewAcceptor(addr string, reg *registry.Registry, logger *slog.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Acceptor{
		ln:       ln,
		registry: reg,
		logger:   logger.With(slog.String("component", "transport.acceptor"), slog.String("addr", addr)),
	}, nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// Close stops accepting new connections.
func (a *Acceptor) Close() error { return a.ln.Close() }

// Run accepts connections until ctx is cancelled or the listener closes.
func (a *Acceptor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = a.ln.Close()
	}()

	for {
		nc, err := a.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: accept: %w", err)
		}
		go a.handle(ctx, nc)
	}
}

// handle identifies the inbound connection's target session from its first
// message and hands the connection off to it, or rejects the connection if
// no matching session is registered or one is already connected (spec.md
// §8 Testable Property 6: at most one connection per SessionID).
func (a *Acceptor) handle(ctx context.Context, nc net.Conn) {
	conn := NewConn(nc, a.logger)

	raw, err := conn.framer.Next()
	if err != nil {
		a.logger.Warn("failed to read initial frame", slog.String("conn", conn.id.String()), slog.String("error", err.Error()))
		conn.Disconnect("invalid initial frame")
		return
	}
	first, err := fixmsg.ParseMessage(raw)
	if err != nil {
		a.logger.Warn("failed to parse initial message", slog.String("conn", conn.id.String()), slog.String("error", err.Error()))
		conn.Disconnect("invalid initial message")
		return
	}
	if mt, _ := first.MsgType(); mt != fixmsg.MsgTypeLogon {
		a.logger.Warn("initial message was not a Logon", slog.String("conn", conn.id.String()), slog.String("msg_type", mt))
		conn.Disconnect("expected Logon")
		return
	}

	peerClaim := peerClaimFromHeader(first)
	sess, ok := a.registry.LookupReversed(peerClaim)
	if !ok {
		a.logger.Warn("no session registered for peer", slog.String("conn", conn.id.String()), slog.String("peer", peerClaim.String()))
		conn.Disconnect("unrecognized SessionID")
		return
	}

	if err := sess.SetResponder(ctx, conn); err != nil {
		a.logger.Warn("rejecting duplicate connection", slog.String("conn", conn.id.String()), slog.String("session", sess.ID().String()), slog.String("error", err.Error()))
		conn.Disconnect("session already connected")
		return
	}
	conn.SetValidateChecksum(sess.ValidatesChecksum())

	// Re-parse now that sess is known, so a Logon carrying repeating groups
	// (e.g. NoMsgTypes) is reconstructed with the session's dictionary
	// instead of dispatched as the flat parse used above for routing.
	dispatched, err := sess.ParseMessage(raw)
	if err != nil {
		a.logger.Warn("failed to re-parse initial message", slog.String("conn", conn.id.String()), slog.String("error", err.Error()))
		conn.Disconnect("invalid initial message")
		return
	}

	if err := conn.Serve(ctx, sess, dispatched); err != nil {
		a.logger.Debug("connection ended", slog.String("conn", conn.id.String()), slog.String("error", err.Error()))
	}
}
