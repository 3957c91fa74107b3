package model

import "time"

// Millis converts t to epoch milliseconds, the unit of every persisted
// timestamp and date.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a local time.Time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
