package session

import "time"

// Clock abstracts wall-clock access so Tick-driven timeout logic is
// deterministic under test (spec.md §9 DESIGN NOTES: "a single injectable
// clock abstraction").
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// RealClock is the production Clock backed by time.Now.
var RealClock Clock = realClock{}
