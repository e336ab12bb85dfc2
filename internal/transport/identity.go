package transport

import (
	"github.com/dantte-lp/gofix/internal/fixmsg"
	"github.com/dantte-lp/gofix/internal/session"
)

// peerClaimFromHeader reads the peer's own view of the session identity
// (its SenderCompID/TargetCompID, not reversed) from an inbound message's
// header, for use with registry.LookupReversed.
func peerClaimFromHeader(msg *fixmsg.Message) session.ID {
	beginString, _ := msg.Header.GetField(fixmsg.TagBeginString)
	senderCompID, _ := msg.Header.GetField(fixmsg.TagSenderCompID)
	senderSubID, _ := msg.Header.GetField(fixmsg.TagSenderSubID)
	targetCompID, _ := msg.Header.GetField(fixmsg.TagTargetCompID)
	targetSubID, _ := msg.Header.GetField(fixmsg.TagTargetSubID)
	return session.ID{
		BeginString:  beginString,
		SenderCompID: senderCompID,
		SenderSubID:  senderSubID,
		TargetCompID: targetCompID,
		TargetSubID:  targetSubID,
	}
}
