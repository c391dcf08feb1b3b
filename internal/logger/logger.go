// Package logger writes timestamped diagnostic lines.
package logger

import (
	"io"
	"log"
	"time"
)

// TimeFormat is the UTC timestamp layout prefixed to every line.
const TimeFormat = "2006-01-02T15:04:05Z"

// Logf is a printf-style logging function.
type Logf func(format string, args ...any)

// Discard drops everything.
func Discard(string, ...any) {}

// New returns a Logf that writes "[timestamp] message" lines to w.
func New(w io.Writer) Logf {
	return NewWithClock(w, time.Now)
}

// NewWithClock is like New but takes the time from now.
func NewWithClock(w io.Writer, now func() time.Time) Logf {
	l := log.New(w, "", 0)
	return func(format string, args ...any) {
		l.Printf("[%s] "+format, append([]any{now().UTC().Format(TimeFormat)}, args...)...)
	}
}

// OrDiscard returns logf, or Discard when logf is nil.
func OrDiscard(logf Logf) Logf {
	if logf == nil {
		return Discard
	}
	return logf
}

// Errorf, Warnf and Debugf let a Logf serve as a resty logger.
func (f Logf) Errorf(format string, args ...any) { f("ERROR "+format, args...) }
func (f Logf) Warnf(format string, args ...any)  { f("WARN "+format, args...) }
func (f Logf) Debugf(format string, args ...any) { f("DEBUG "+format, args...) }
