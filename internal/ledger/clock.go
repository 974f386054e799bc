package ledger

import (
	"time"

	"cardapio/backend/internal/domain"
)

// Clock pins "today" and day boundaries to the business timezone instead of
// the host's local zone.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Location: loc, Now: time.Now}
}

// FixedClock always reports at as the current instant.
func FixedClock(loc *time.Location, at time.Time) Clock {
	clock := NewClock(loc)
	clock.Now = func() time.Time { return at }
	return clock
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Instant returns the clock's current time in UTC.
func (c Clock) Instant() time.Time {
	return c.now().UTC()
}

// DateOf returns the business-local calendar date of t as YYYY-MM-DD.
func (c Clock) DateOf(t time.Time) string {
	return t.In(c.location()).Format(domain.DateLayout)
}

func (c Clock) Today() string {
	return c.DateOf(c.now())
}

// ParseDate interprets a YYYY-MM-DD string as midnight in the business timezone.
func (c Clock) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout, value, c.location())
}

// LoadLocation resolves an IANA zone name, falling back to UTC when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
