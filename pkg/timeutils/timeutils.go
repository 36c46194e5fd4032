package timeutils

import "time"

// StartOfDay returns midnight of t's calendar day in t's location. The daily
// message quota window always starts here, recomputed per message.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FromProviderTimestamp converts the provider's message timestamp, which is
// observed both in seconds and in milliseconds, into a time.Time. Zero input
// yields the zero time so callers can fall back to ingestion time.
func FromProviderTimestamp(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	if ts > 100000000000 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
