// Package schedule answers when a FIX session is allowed to be logically
// "up": the configured time-of-day/day-of-week window a session trades
// within, and whether a schedule boundary has been crossed since a session
// was created (which forces a sequence-number reset).
package schedule
