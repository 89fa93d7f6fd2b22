package broker

import (
	"time"
)

// market session bounds, US equities, Eastern time.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// holidays the exchange observes; weekends are handled separately.
var holidays = map[string]bool{
	"2026-01-01": true, // New Year's Day
	"2026-01-19": true, // Martin Luther King Jr. Day
	"2026-02-16": true, // Presidents Day
	"2026-04-03": true, // Good Friday
	"2026-05-25": true, // Memorial Day
	"2026-06-19": true, // Juneteenth
	"2026-07-03": true, // Independence Day (observed)
	"2026-09-07": true, // Labor Day
	"2026-11-26": true, // Thanksgiving
	"2026-12-25": true, // Christmas
}

// Clock answers whether the market is currently open. now is injectable so
// loops can be tested at fixed instants.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock() *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fall back to a fixed Eastern offset when tzdata is unavailable.
		loc = time.FixedZone("ET", -5*3600)
	}
	return &Clock{loc: loc, now: time.Now}
}

// IsOpen reports whether the exchange is in its regular session.
func (c *Clock) IsOpen() bool {
	now := c.now().In(c.loc)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	if holidays[now.Format("2006-01-02")] {
		return false
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), openHour, openMinute, 0, 0, c.loc)
	close := time.Date(now.Year(), now.Month(), now.Day(), closeHour, closeMinute, 0, 0, c.loc)

	return !now.Before(open) && !now.After(close)
}
