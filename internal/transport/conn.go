package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/dantte-lp/gofix/internal/fixmsg"
	"github.com/dantte-lp/gofix/internal/session"
	"github.com/rs/xid"
)

// Conn adapts a net.Conn into a session.Responder, framing outbound writes
// and pumping inbound frames through fixmsg.Framer. Each connection carries
// an xid correlation ID for log lines spanning its lifetime.
type Conn struct {
	id     xid.ID
	nc     net.Conn
	framer *fixmsg.Framer
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewConn wraps nc. Use Serve to pump inbound frames into sess once
// sess.SetResponder(ctx, conn) has been called.
func NewConn(nc net.Conn, logger *slog.Logger) *Conn {
	id := xid.New()
	return &Conn{
		id:     id,
		nc:     nc,
		framer: fixmsg.NewFramer(nc),
		logger: logger.With(slog.String("conn", id.String()), slog.String("remote", nc.RemoteAddr().String())),
	}
}

// ID returns the connection's correlation ID.
func (c *Conn) ID() xid.ID { return c.id }

// SetValidateChecksum configures whether the connection's Framer verifies
// each inbound frame's CheckSum, per the owning session's
// ValidateLengthAndChecksum setting.
func (c *Conn) SetValidateChecksum(validate bool) {
	c.framer.SetValidateChecksum(validate)
}

// Send implements session.Responder.
func (c *Conn) Send(_ context.Context, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("transport: conn %s: %w", c.id, net.ErrClosed)
	}
	if _, err := c.nc.Write(raw); err != nil {
		return fmt.Errorf("transport: conn %s: write: %w", c.id, err)
	}
	return nil
}

// Disconnect implements session.Responder.
func (c *Conn) Disconnect(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.logger.Info("closing connection", slog.String("reason", reason))
	_ = c.nc.Close()
}

// Serve pumps frames off the wire into sess.OnMessage until the connection
// closes, a framing error proves unrecoverable, or ctx is cancelled. First,
// if first is non-nil, it is dispatched before reading any further frames
// (used by the acceptor, which must parse an inbound Logon to identify the
// target session before sess.SetResponder can even be called).
func (c *Conn) Serve(ctx context.Context, sess *session.Session, first *fixmsg.Message) error {
	if first != nil {
		if err := sess.OnMessage(ctx, first); err != nil {
			c.logger.Warn("initial message rejected", slog.String("error", err.Error()))
		}
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, err := c.framer.Next()
		if err != nil {
			var fe *fixmsg.FrameError
			if errors.As(err, &fe) {
				c.logger.Warn("dropping malformed frame", slog.String("error", fe.Error()))
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("transport: conn %s: framer: %w", c.id, err)
		}

		msg, err := sess.ParseMessage(raw)
		if err != nil {
			c.logger.Warn("dropping unparseable message", slog.String("error", err.Error()))
			continue
		}
		if err := sess.OnMessage(ctx, msg); err != nil {
			c.logger.Debug("session rejected message", slog.String("error", err.Error()))
		}
	}
}
