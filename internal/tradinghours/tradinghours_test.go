package tradinghours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return loc
}

func at(loc *time.Location, hour, min, sec int) time.Time {
	return time.Date(2026, 8, 24, hour, min, sec, 0, loc)
}

func TestInSession(t *testing.T) {
	loc := shanghai(t)
	cal := NewCalendarIn(loc)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", at(loc, 8, 59, 59), false},
		{"morning open", at(loc, 9, 0, 0), true},
		{"mid morning", at(loc, 10, 0, 0), true},
		{"first break start", at(loc, 10, 15, 1), false},
		{"second window", at(loc, 10, 30, 0), true},
		{"lunch break", at(loc, 12, 0, 0), false},
		{"afternoon", at(loc, 14, 30, 0), true},
		{"close", at(loc, 15, 0, 0), true},
		{"after close", at(loc, 15, 0, 1), false},
		{"night", at(loc, 21, 30, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.InSession(tt.at))
		})
	}
}

func TestCanSubmitRespectsEndBuffer(t *testing.T) {
	loc := shanghai(t)
	cal := NewCalendarIn(loc)
	buffer := 15 * time.Second

	// Inside a window with plenty of time left.
	assert.True(t, cal.CanSubmit(at(loc, 14, 0, 0), buffer))

	// Exactly at the buffer boundary is still allowed.
	assert.True(t, cal.CanSubmit(at(loc, 14, 59, 45), buffer))

	// Inside the last 15 seconds of a window.
	assert.False(t, cal.CanSubmit(at(loc, 14, 59, 50), buffer))
	assert.False(t, cal.CanSubmit(at(loc, 10, 14, 55), buffer))

	// Outside any window.
	assert.False(t, cal.CanSubmit(at(loc, 12, 0, 0), buffer))
}

func TestCanSubmitConvertsTimezone(t *testing.T) {
	cal := NewCalendarIn(shanghai(t))

	// 06:00 UTC is 14:00 in Shanghai, inside the afternoon session.
	utc := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	assert.True(t, cal.InSession(utc))
	assert.True(t, cal.CanSubmit(utc, 15*time.Second))
}
