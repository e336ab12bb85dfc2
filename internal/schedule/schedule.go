package schedule

import (
	"fmt"
	"time"
)

// TimeOfDay is an offset from midnight, local to a Schedule's Location.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from an hour/minute/second triple.
func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

// Schedule describes the window during which a session is considered
// "in session time" (spec.md §4.4). Two shapes are supported: a daily
// window repeated every day (StartDay/EndDay unset), and a weekly window
// that runs from a day+time to another day+time (e.g. Sunday 17:00 to
// Friday 17:00, the conventional FX trading week).
type Schedule struct {
	Location *time.Location

	StartTime TimeOfDay
	EndTime   TimeOfDay

	// Weekly, when true, interprets StartDay/EndDay as the weekly window
	// boundary days; when false the window repeats every calendar day.
	Weekly   bool
	StartDay time.Weekday
	EndDay   time.Weekday

	// NonStopSession disables the window entirely: the session is always
	// in session time, and schedule boundaries never trigger a reset.
	NonStopSession bool
}

// NewDailySchedule returns a Schedule whose window repeats every day in loc.
func NewDailySchedule(loc *time.Location, start, end TimeOfDay) *Schedule {
	return &Schedule{Location: loc, StartTime: start, EndTime: end}
}

// NewWeeklySchedule returns a Schedule whose window runs from startDay at
// startTime to endDay at endTime, once per week, in loc.
func NewWeeklySchedule(loc *time.Location, startDay time.Weekday, startTime TimeOfDay, endDay time.Weekday, endTime TimeOfDay) *Schedule {
	return &Schedule{
		Location:  loc,
		StartTime: startTime,
		EndTime:   endTime,
		Weekly:    true,
		StartDay:  startDay,
		EndDay:    endDay,
	}
}

// NewNonStopSchedule returns a Schedule that is always in session time.
func NewNonStopSchedule() *Schedule {
	return &Schedule{Location: time.UTC, NonStopSession: true}
}

// IsSessionTime reports whether now falls within the configured window.
func (s *Schedule) IsSessionTime(now time.Time) bool {
	if s.NonStopSession {
		return true
	}
	loc := s.loc()
	local := now.In(loc)

	if s.Weekly {
		return s.withinWeeklyWindow(local)
	}
	return s.withinDailyWindow(timeOfDayOf(local))
}

// IsNewSession reports whether a session-start boundary fell strictly
// between creationTime and now (spec.md §4.4: "did a schedule boundary fall
// strictly between creationTime and now").
func (s *Schedule) IsNewSession(creationTime, now time.Time) bool {
	if s.NonStopSession {
		return false
	}
	if !now.After(creationTime) {
		return false
	}
	boundary := s.nextBoundaryAfter(creationTime)
	return boundary.After(creationTime) && !boundary.After(now)
}

func (s *Schedule) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func timeOfDayOf(t time.Time) TimeOfDay {
	h, m, sec := t.Clock()
	return NewTimeOfDay(h, m, sec)
}

func (s *Schedule) withinDailyWindow(tod TimeOfDay) bool {
	if s.StartTime <= s.EndTime {
		return tod >= s.StartTime && tod < s.EndTime
	}
	// Window spans midnight (e.g. 22:00 to 06:00).
	return tod >= s.StartTime || tod < s.EndTime
}

// weekOffset returns the duration since the start of the week (Sunday
// 00:00) for t, used to compare against the weekly window's boundaries on
// a single linear scale.
func weekOffset(t time.Time) time.Duration {
	return time.Duration(t.Weekday())*24*time.Hour + time.Duration(timeOfDayOf(t))
}

func (s *Schedule) withinWeeklyWindow(t time.Time) bool {
	start := time.Duration(s.StartDay)*24*time.Hour + time.Duration(s.StartTime)
	end := time.Duration(s.EndDay)*24*time.Hour + time.Duration(s.EndTime)
	off := weekOffset(t)
	if start <= end {
		return off >= start && off < end
	}
	return off >= start || off < end
}

// nextBoundaryAfter returns the next session-start instant strictly after t.
func (s *Schedule) nextBoundaryAfter(t time.Time) time.Time {
	loc := s.loc()
	local := t.In(loc)

	if !s.Weekly {
		candidate := dailyStartOn(local, s.StartTime, loc)
		if !candidate.After(local) {
			candidate = dailyStartOn(local.AddDate(0, 0, 1), s.StartTime, loc)
		}
		return candidate
	}

	candidate := weeklyStartOn(local, s.StartDay, s.StartTime, loc)
	for !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func dailyStartOn(day time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(tod))
}

// weeklyStartOn returns the instant of startDay/startTime in the same week
// as day (the week containing day, per Go's Weekday numbering).
func weeklyStartOn(day time.Time, startDay time.Weekday, startTime TimeOfDay, loc *time.Location) time.Time {
	delta := int(startDay) - int(day.Weekday())
	base := dailyStartOn(day, 0, loc).AddDate(0, 0, delta)
	return base.Add(time.Duration(startTime))
}

func (s *Schedule) String() string {
	if s.NonStopSession {
		return "non-stop"
	}
	if s.Weekly {
		return fmt.Sprintf("%s %s - %s %s (%s)", s.StartDay, time.Duration(s.StartTime), s.EndDay, time.Duration(s.EndTime), s.loc())
	}
	return fmt.Sprintf("%s - %s (%s) daily", time.Duration(s.StartTime), time.Duration(s.EndTime), s.loc())
}
