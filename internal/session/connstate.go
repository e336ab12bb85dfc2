package session

// ConnectionState is the transport-level connectivity of a session: three
// disjoint states, with no overlap between "connected" and "logon phase"
// concerns (spec.md §9 DESIGN NOTES: the source's ConnectionState flag set
// overlapped Connected with LogOnInQueue; here the two concerns are
// separate fields entirely).
type ConnectionState uint8

const (
	ConnectionStateDisconnected ConnectionState = iota + 1
	ConnectionStatePending
	ConnectionStateConnected
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionStatePending:
		return "Pending"
	case ConnectionStateConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// logonPhase tracks the handshake sub-states layered on top of
// ConnectionStateConnected (spec.md §4.5.1: "NotLoggedOn, LogonSent,
// LogonReceived, LoggedOn, LogoutSent"). These are plain bools rather than
// a single enum because SentLogon and ReceivedLogon toggle independently
// before both become true.
type logonPhase struct {
	sentLogon     bool
	receivedLogon bool
	sentLogout    bool
}

// loggedOn reports LoggedOn == SentLogon && ReceivedLogon.
func (p logonPhase) loggedOn() bool {
	return p.sentLogon && p.receivedLogon
}

func (p logonPhase) reset() logonPhase {
	return logonPhase{}
}
