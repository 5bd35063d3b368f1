// Package timelib provides GPS-epoch time conversions for GroundStore.
//
// GPS times are millisecond counts since the GPS epoch (1980-01-06T00:00:00Z).
// Leap seconds are not applied; the credential expiry math only needs
// second-level accuracy over horizons of minutes to hours.
package timelib

import (
	"fmt"
	"time"
)

// gpsEpoch is 1980-01-06T00:00:00Z, the start of GPS time.
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// expirationFormats are the timestamp layouts accepted by Str2GPSTime, tried
// in order. Identity providers emit the first two; the rest cover manual
// entry.
var expirationFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"20060102T150405Z",
}

// GmtTime is a broken-out UTC timestamp.
type GmtTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Str2GPSTime parses a timestamp string and returns GPS-epoch milliseconds.
func Str2GPSTime(s string) (int64, error) {
	for _, layout := range expirationFormats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return ToGPSMS(t), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time string: %q", s)
}

// GettimeMS returns the current time as GPS-epoch milliseconds.
func GettimeMS() int64 {
	return ToGPSMS(time.Now())
}

// ToGPSMS converts a time.Time to GPS-epoch milliseconds.
func ToGPSMS(t time.Time) int64 {
	return t.Sub(gpsEpoch).Milliseconds()
}

// FromGPSMS converts GPS-epoch milliseconds back to a UTC time.Time.
func FromGPSMS(ms int64) time.Time {
	return gpsEpoch.Add(time.Duration(ms) * time.Millisecond).UTC()
}

// GmtNow returns the current UTC time broken out into calendar fields.
func GmtNow() GmtTime {
	now := time.Now().UTC()
	return GmtTime{
		Year:   now.Year(),
		Month:  int(now.Month()),
		Day:    now.Day(),
		Hour:   now.Hour(),
		Minute: now.Minute(),
		Second: now.Second(),
	}
}
