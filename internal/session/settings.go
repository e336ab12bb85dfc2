package session

import (
	"time"

	"github.com/dantte-lp/gofix/internal/dict"
	"github.com/dantte-lp/gofix/internal/fixmsg"
	"github.com/dantte-lp/gofix/internal/schedule"
)

// ConnectionType distinguishes a session that dials out (initiator) from
// one that waits for an inbound connection (acceptor).
type ConnectionType uint8

const (
	ConnectionTypeInitiator ConnectionType = iota + 1
	ConnectionTypeAcceptor
)

func (c ConnectionType) String() string {
	if c == ConnectionTypeAcceptor {
		return "acceptor"
	}
	return "initiator"
}

// Settings is one session's full configuration, reproducing the recognized
// key set of spec.md §6 so interop with existing deployments is preserved.
type Settings struct {
	ID             ID
	ConnectionType ConnectionType

	DefaultApplVerID string // required for FIXT.1.1

	HeartBtInt time.Duration // required for initiator; must be > 0

	Schedule *schedule.Schedule

	ReconnectInterval time.Duration

	ResetOnLogon      bool
	ResetOnLogout     bool
	ResetOnDisconnect bool
	RefreshOnLogon    bool

	LogonTimeout  time.Duration // default 10s
	LogoutTimeout time.Duration // default 2s

	CheckLatency bool          // default true
	MaxLatency   time.Duration // default 120s

	PersistMessages                   bool // default true
	ValidateLengthAndChecksum         bool // default true
	CheckCompID                       bool
	SendRedundantResendRequests       bool
	ResendSessionLevelRejects         bool
	IgnorePossDupResendRequests       bool
	RequiresOrigSendingTime           bool
	EnableLastMsgSeqNumProcessed      bool
	SendLogoutBeforeDisconnectOnTimeout bool

	TimeStampPrecision fixmsg.Precision

	// MaxMessagesInResendRequest chunks large resend ranges; 0 means
	// request the whole range in one ResendRequest.
	MaxMessagesInResendRequest int

	Dictionary          *dict.Dictionary
	TransportDictionary *dict.Dictionary
	AppDictionary       *dict.Dictionary
	UseDataDictionary   bool
}

// DefaultSettings returns a Settings with the spec's documented defaults
// applied, for id and t.
func DefaultSettings(id ID, t ConnectionType) Settings {
	return Settings{
		ID:                         id,
		ConnectionType:             t,
		HeartBtInt:                 30 * time.Second,
		ReconnectInterval:          30 * time.Second,
		LogonTimeout:               10 * time.Second,
		LogoutTimeout:              2 * time.Second,
		CheckLatency:               true,
		MaxLatency:                 120 * time.Second,
		PersistMessages:            true,
		ValidateLengthAndChecksum:  true,
		CheckCompID:                true,
		TimeStampPrecision:         fixmsg.PrecisionMillis,
		MaxMessagesInResendRequest: 0,
	}
}
