// Package tradinghours implements the exchange session calendar used by the
// submit pipeline and the liveness rule. All checks are evaluated in the
// exchange timezone (Asia/Shanghai).
package tradinghours

import (
	"time"
)

// Window is one trading session expressed in minutes since midnight,
// inclusive of both ends.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Day sessions of the Chinese futures day market.
var Sessions = []Window{
	{StartMinute: 9 * 60, EndMinute: 10*60 + 15},
	{StartMinute: 10*60 + 30, EndMinute: 11*60 + 30},
	{StartMinute: 13*60 + 30, EndMinute: 15 * 60},
}

// Calendar answers session membership questions for a fixed timezone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the exchange timezone.
func NewCalendar() (*Calendar, error) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return nil, err
	}
	return &Calendar{loc: loc}, nil
}

// NewCalendarIn builds a calendar over an explicit location, used by tests.
func NewCalendarIn(loc *time.Location) *Calendar {
	return &Calendar{loc: loc}
}

// InSession reports whether now falls inside any trading window. Drain
// failures only count against the liveness budget while this is true.
func (c *Calendar) InSession(now time.Time) bool {
	local := now.In(c.loc)
	secs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	for _, w := range Sessions {
		if secs >= w.StartMinute*60 && secs <= w.EndMinute*60 {
			return true
		}
	}
	return false
}

// CanSubmit reports whether a new order may be submitted at now. The last
// endBuffer of every window is closed to new submissions so that orders are
// not left working into the session break.
func (c *Calendar) CanSubmit(now time.Time, endBuffer time.Duration) bool {
	local := now.In(c.loc)
	secs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	buffer := int(endBuffer / time.Second)
	for _, w := range Sessions {
		if secs >= w.StartMinute*60 && secs <= w.EndMinute*60-buffer {
			return true
		}
	}
	return false
}
