// Package app provides the default session.Application used by the fixd
// daemon: one that logs every lifecycle event and passes every admin and
// application message through unmodified, mirroring the teacher's manager
// logging around session creation, destruction and state changes.
package app

import (
	"log/slog"

	"github.com/dantte-lp/gofix/internal/fixmsg"
	"github.com/dantte-lp/gofix/internal/session"
)

// LoggingApplication implements session.Application by logging lifecycle
// events at Info level and every message at Debug level. It never vetoes a
// message and never rejects a Logon; a daemon wiring in real business logic
// would replace it with its own Application, but fixd's admin surface only
// needs the session-layer handshake, so this is the whole default stack.
type LoggingApplication struct {
	logger *slog.Logger
}

// NewLoggingApplication returns a LoggingApplication logging through logger.
func NewLoggingApplication(logger *slog.Logger) *LoggingApplication {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingApplication{logger: logger.With(slog.String("component", "app"))}
}

func (a *LoggingApplication) OnCreate(id session.ID) {
	a.logger.Info("session created", slog.String("session", id.String()))
}

func (a *LoggingApplication) OnLogon(id session.ID) {
	a.logger.Info("session logged on", slog.String("session", id.String()))
}

func (a *LoggingApplication) OnLogout(id session.ID) {
	a.logger.Info("session logged out", slog.String("session", id.String()))
}

func (a *LoggingApplication) ToAdmin(id session.ID, msg *fixmsg.Message) {
	msgType, _ := msg.MsgType()
	a.logger.Debug("admin message out", slog.String("session", id.String()), slog.String("msg_type", msgType))
}

func (a *LoggingApplication) FromAdmin(id session.ID, msg *fixmsg.Message) error {
	msgType, _ := msg.MsgType()
	a.logger.Debug("admin message in", slog.String("session", id.String()), slog.String("msg_type", msgType))
	return nil
}

func (a *LoggingApplication) ToApp(id session.ID, msg *fixmsg.Message) error {
	msgType, _ := msg.MsgType()
	a.logger.Debug("app message out", slog.String("session", id.String()), slog.String("msg_type", msgType))
	return nil
}

func (a *LoggingApplication) FromApp(id session.ID, msg *fixmsg.Message) error {
	msgType, _ := msg.MsgType()
	a.logger.Debug("app message in", slog.String("session", id.String()), slog.String("msg_type", msgType))
	return nil
}
