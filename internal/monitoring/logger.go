package monitoring

import (
	"io"
	"log"
)

// Logf is the process-wide logger used by storage and configuration code.
// It defaults to log.Printf; SetLogger redirects or mutes it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// WriterLogf returns a Logf-compatible function writing to w with the
// given prefix. A nil writer yields a no-op logger.
func WriterLogf(w io.Writer, prefix string) func(format string, v ...interface{}) {
	if w == nil {
		return func(string, ...interface{}) {}
	}
	l := log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
	return l.Printf
}
