package session

import "github.com/dantte-lp/gofix/internal/fixmsg"

// Application is the consumer-supplied callback surface (spec.md §6:
// "OnCreate, OnLogon, OnLogout, ToAdmin, FromAdmin, ToApp, FromApp").
//
// ToApp may return DoNotSend() (or any error wrapping ErrDoNotSend) to
// silently veto a single outbound application message. FromAdmin may
// return a *RejectLogonError during Logon processing to force a Logout
// with that reason followed by disconnect.
type Application interface {
	OnCreate(id ID)
	OnLogon(id ID)
	OnLogout(id ID)

	ToAdmin(id ID, msg *fixmsg.Message)
	FromAdmin(id ID, msg *fixmsg.Message) error
	ToApp(id ID, msg *fixmsg.Message) error
	FromApp(id ID, msg *fixmsg.Message) error
}

// NoopApplication implements Application with no-op callbacks, useful as an
// embeddable base for applications that only care about a subset of hooks.
type NoopApplication struct{}

func (NoopApplication) OnCreate(ID)                            {}
func (NoopApplication) OnLogon(ID)                              {}
func (NoopApplication) OnLogout(ID)                             {}
func (NoopApplication) ToAdmin(ID, *fixmsg.Message)             {}
func (NoopApplication) FromAdmin(ID, *fixmsg.Message) error     { return nil }
func (NoopApplication) ToApp(ID, *fixmsg.Message) error         { return nil }
func (NoopApplication) FromApp(ID, *fixmsg.Message) error       { return nil }
