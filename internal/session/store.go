package session

import (
	"fmt"
	"sync"
	"time"
)

// MessageStore is the per-session persistence abstraction (spec.md §6:
// "get/set next-sender/next-target, incr variants, Get(begin, end, out
// messages), Set(seqNum, rawMessage), Reset(), Refresh(), CreationTime").
// It is accessed from exactly one session and must serialize its own
// mutations (spec.md §5).
type MessageStore interface {
	NextSenderMsgSeqNum() int
	NextTargetMsgSeqNum() int
	SetNextSenderMsgSeqNum(n int)
	SetNextTargetMsgSeqNum(n int)
	IncrNextSenderMsgSeqNum()
	IncrNextTargetMsgSeqNum()

	// Get appends every stored raw message with seqNum in [begin, end] to
	// out, in ascending sequence order, skipping any hole.
	Get(begin, end int) (out [][]byte, err error)
	Set(seqNum int, raw []byte) error

	// Reset zeroes both sequence numbers to 1 and discards stored
	// messages (spec.md §4.5.6).
	Reset() error

	// Refresh reloads persisted state from the backing medium. For the
	// in-memory store this is a no-op.
	Refresh() error

	CreationTime() time.Time
}

// MemoryStore is an in-memory MessageStore. It is the default store and
// the one used in tests; a durable implementation (file- or
// database-backed) satisfies the same interface.
type MemoryStore struct {
	mu sync.Mutex

	nextSender int
	nextTarget int
	messages   map[int][]byte
	creation   time.Time

	clock Clock
}

// NewMemoryStore returns a MemoryStore with both sequence numbers
// initialized to 1 and creation time set to clock.Now().
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = RealClock
	}
	return &MemoryStore{
		nextSender: 1,
		nextTarget: 1,
		messages:   make(map[int][]byte),
		creation:   clock.Now(),
		clock:      clock,
	}
}

func (s *MemoryStore) NextSenderMsgSeqNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSender
}

func (s *MemoryStore) NextTargetMsgSeqNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTarget
}

func (s *MemoryStore) SetNextSenderMsgSeqNum(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSender = n
}

func (s *MemoryStore) SetNextTargetMsgSeqNum(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTarget = n
}

func (s *MemoryStore) IncrNextSenderMsgSeqNum() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSender++
}

func (s *MemoryStore) IncrNextTargetMsgSeqNum() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTarget++
}

func (s *MemoryStore) Get(begin, end int) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if begin > end {
		return nil, fmt.Errorf("session: store.Get: begin %d > end %d", begin, end)
	}
	out := make([][]byte, 0, end-begin+1)
	for n := begin; n <= end; n++ {
		if raw, ok := s.messages[n]; ok {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (s *MemoryStore) Set(seqNum int, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.messages[seqNum] = cp
	return nil
}

func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSender = 1
	s.nextTarget = 1
	s.messages = make(map[int][]byte)
	s.creation = s.clock.Now()
	return nil
}

func (s *MemoryStore) Refresh() error { return nil }

func (s *MemoryStore) CreationTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creation
}
