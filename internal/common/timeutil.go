package common

import "time"

// FromEpochMillis converts a vendor epoch-milliseconds value to a UTC time.
func FromEpochMillis(epoch int64) time.Time {
	return time.UnixMilli(epoch).UTC()
}

// ToEpochMillis converts a time to the epoch-milliseconds form the hub API
// expects in its channel queries.
func ToEpochMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// DayStart truncates a time to midnight UTC of the same calendar day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
