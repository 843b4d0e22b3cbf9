package data

import "time"

// TimeProvider provides time-related functionality that can be mocked for
// testing.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// FormatForDB formats a time for database insertion.
	FormatForDB(t time.Time) string
}

// dbTimeLayout is the canonical timestamp encoding in the SQLite store:
// RFC 3339 in UTC with a fixed-width microsecond fraction, so stored text
// sorts in time order.
const dbTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// RealTimeProvider implements TimeProvider using real system time.
type RealTimeProvider struct{}

// Now returns the current system time.
func (r *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FormatForDB formats a time for SQLite insertion.
func (r *RealTimeProvider) FormatForDB(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

// FixedTimeProvider implements TimeProvider with a fixed time for testing.
type FixedTimeProvider struct {
	fixedTime time.Time
}

// NewFixedTimeProvider creates a new FixedTimeProvider with the given time.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{fixedTime: t}
}

// Now returns the fixed time.
func (f *FixedTimeProvider) Now() time.Time {
	return f.fixedTime
}

// FormatForDB formats the given time for SQLite insertion.
func (f *FixedTimeProvider) FormatForDB(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

// SetTime updates the fixed time (useful for testing time progression).
func (f *FixedTimeProvider) SetTime(t time.Time) {
	f.fixedTime = t
}

// AddTime adds a duration to the current fixed time.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.fixedTime = f.fixedTime.Add(d)
}
