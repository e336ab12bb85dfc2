package session

import (
	"context"
	"time"
)

// FIX convention constants for the heartbeat/test-request escalation
// (spec.md §4.5.2: "constants 2.4 and 1.2 are the FIX convention and MUST
// be preserved").
const (
	testRequestMultiplier  = 1.2
	heartbeatTimeoutFactor = 2.4
)

// Tick drives the session's time-based behavior: session-time scheduling,
// the logon handshake's own timeouts, and the heartbeat/test-request chain
// (spec.md §4.5.2). It is idempotent to call on any cadence; callers
// typically invoke it once per second.
func (s *Session) Tick(ctx context.Context) error {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()

	now := s.clock.Now()

	// 1. Not connected: nothing to do.
	if s.connState != ConnectionStateConnected || s.responder == nil {
		return nil
	}

	// 2. Outside session time.
	if s.settings.Schedule != nil && !s.settings.Schedule.IsSessionTime(now) {
		if s.settings.ConnectionType == ConnectionTypeInitiator {
			return s.resetLocked(ctx, "Out of SessionTime")
		}
		if s.phase.loggedOn() {
			s.sendLocked(ctx, buildLogout("Out of SessionTime"), 0)
		}
		s.disconnectLocked("Out of SessionTime")
		return nil
	}

	// 3. Schedule boundary crossed since creation: reset sequence numbers.
	if s.settings.Schedule != nil && s.settings.Schedule.IsNewSession(s.store.CreationTime(), now) {
		if err := s.resetLocked(ctx, "New session period"); err != nil {
			return err
		}
		return nil
	}

	// 4. Administratively disabled while logged on.
	if !s.enabled && s.phase.loggedOn() && !s.phase.sentLogout {
		s.sendLocked(ctx, buildLogout(s.logoutReason), 0)
		return nil
	}

	// 5. Logon handshake timeouts.
	if !s.phase.receivedLogon {
		if s.settings.ConnectionType == ConnectionTypeInitiator && !s.phase.sentLogon {
			s.sendLocked(ctx, buildLogon(heartBtIntSeconds(s.settings.HeartBtInt), false, s.settings.DefaultApplVerID), 0)
			return nil
		}
		if s.phase.sentLogon && now.Sub(s.lastReceivedTime) >= logonTimeout(s.settings) {
			s.disconnectLocked("Timed out waiting for logon response")
			return nil
		}
		return nil
	}

	// 6. Test mode: no heartbeats.
	if s.settings.HeartBtInt <= 0 {
		return nil
	}

	// 7. Logout sent, peer silent past LogoutTimeout.
	if s.phase.sentLogout && now.Sub(s.lastSentTime) >= logoutTimeout(s.settings) {
		s.disconnectLocked("Timed out waiting for logout confirmation")
		return nil
	}

	elapsedSinceReceive := now.Sub(s.lastReceivedTime)
	elapsedSinceSend := now.Sub(s.lastSentTime)

	// 8. Within heartbeat window on both directions.
	if elapsedSinceReceive < s.settings.HeartBtInt && elapsedSinceSend < s.settings.HeartBtInt {
		return nil
	}

	// 9. Peer silent past 2.4 x HeartBtInt: time out the session.
	if elapsedSinceReceive >= scaleDuration(s.settings.HeartBtInt, heartbeatTimeoutFactor) {
		if s.settings.SendLogoutBeforeDisconnectOnTimeout {
			s.sendLocked(ctx, buildLogout("Timed out waiting for heartbeat"), 0)
		}
		s.disconnectLocked("Timed out waiting for heartbeat")
		return nil
	}

	// 10. Escalate: TestRequest first, then steady-state Heartbeat.
	testReqThreshold := scaleDuration(s.settings.HeartBtInt, testRequestMultiplier*float64(s.testRequestCounter+1))
	switch {
	case elapsedSinceReceive >= testReqThreshold:
		s.sendLocked(ctx, buildTestRequest("TEST"), 0)
		s.testRequestCounter++
	case elapsedSinceSend >= s.settings.HeartBtInt && s.testRequestCounter == 0:
		s.sendLocked(ctx, buildHeartbeat(""), 0)
	}

	return nil
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

func heartBtIntSeconds(d time.Duration) int {
	return int(d / time.Second)
}

func logonTimeout(cfg Settings) time.Duration {
	if cfg.LogonTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.LogonTimeout
}

func logoutTimeout(cfg Settings) time.Duration {
	if cfg.LogoutTimeout <= 0 {
		return 2 * time.Second
	}
	return cfg.LogoutTimeout
}
