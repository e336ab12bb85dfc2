package session

import (
	"context"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// versionUsesInfiniteEndSeqNo reports whether beginString represents an
// open-ended resend range with EndSeqNo=0 (FIX >= 4.2) rather than the
// legacy 999999 convention (spec.md §4.5.4).
func versionUsesInfiniteEndSeqNo(beginString string) bool {
	switch beginString {
	case "FIX.4.0", "FIX.4.1":
		return false
	default:
		return true
	}
}

// openGapLocked implements spec.md §4.5.4: queue the out-of-order message
// by sequence number and, unless a resend is already outstanding (and
// SendRedundantResendRequests is false), ask the peer to replay the gap.
func (s *Session) openGapLocked(ctx context.Context, msg *fixmsg.Message, seqNum int) {
	if raw := msg.Bytes(); raw != nil {
		s.gaps.enqueue(seqNum, raw)
	}

	if s.resendRange.active() && !s.settings.SendRedundantResendRequests {
		return
	}

	begin := s.store.NextTargetMsgSeqNum()
	end := seqNum - 1

	chunkEnd := 0
	if s.settings.MaxMessagesInResendRequest > 0 && end-begin+1 > s.settings.MaxMessagesInResendRequest {
		chunkEnd = begin + s.settings.MaxMessagesInResendRequest - 1
	}

	wireEnd := end
	if chunkEnd == 0 {
		if versionUsesInfiniteEndSeqNo(s.settings.ID.BeginString) {
			wireEnd = 0
		} else {
			wireEnd = 999999
		}
	} else {
		wireEnd = chunkEnd
	}

	s.resendRange = ResendRange{BeginSeqNo: begin, EndSeqNo: end, ChunkEndSeqNo: chunkEnd}
	s.sendLocked(ctx, buildResendRequest(begin, wireEnd), 0)
	s.metrics.IncGapsDetected(s.id)
}

// advanceResendRangeLocked updates an outstanding resend range as inbound
// messages satisfy it, issuing a follow-up ResendRequest for the next
// chunk when the range is not yet fully satisfied (spec.md §4.5.3 Verify
// step 4).
func (s *Session) advanceResendRangeLocked(ctx context.Context, seqNum int) {
	if s.resendRange.ChunkEndSeqNo != 0 && seqNum >= s.resendRange.ChunkEndSeqNo {
		nextBegin := s.resendRange.ChunkEndSeqNo + 1
		if nextBegin > s.resendRange.EndSeqNo {
			s.resendRange = ResendRange{}
			return
		}
		nextChunkEnd := 0
		if s.settings.MaxMessagesInResendRequest > 0 && s.resendRange.EndSeqNo-nextBegin+1 > s.settings.MaxMessagesInResendRequest {
			nextChunkEnd = nextBegin + s.settings.MaxMessagesInResendRequest - 1
		}
		wireEnd := s.resendRange.EndSeqNo
		if nextChunkEnd != 0 {
			wireEnd = nextChunkEnd
		} else if versionUsesInfiniteEndSeqNo(s.settings.ID.BeginString) {
			wireEnd = 0
		} else {
			wireEnd = 999999
		}
		s.resendRange = ResendRange{BeginSeqNo: nextBegin, EndSeqNo: s.resendRange.EndSeqNo, ChunkEndSeqNo: nextChunkEnd}
		s.sendLocked(ctx, buildResendRequest(nextBegin, wireEnd), 0)
		return
	}
	if seqNum >= s.resendRange.EndSeqNo {
		s.resendRange = ResendRange{}
	}
}

// drainGapQueueLocked re-processes queued out-of-order messages in
// sequence-number order once the predecessor they were waiting on has
// arrived, stopping as soon as the next expected message is not queued
// (spec.md §4.5.4: "re-entrant process-next-queued-by-seq loop").
func (s *Session) drainGapQueueLocked(ctx context.Context) {
	for {
		expected := s.store.NextTargetMsgSeqNum()
		raw, ok := s.gaps.take(expected)
		if !ok {
			return
		}
		s.logger.Debug("draining queued gap message", "seq_num", expected)
		parsed, err := s.ParseMessage(raw)
		if err != nil {
			s.logger.Warn("failed to re-parse queued gap message", "seq_num", expected, "error", err)
			return
		}
		msgType, _ := parsed.MsgType()
		s.store.IncrNextTargetMsgSeqNum()
		_ = s.dispatchLocked(ctx, msgType, parsed)
	}
}
