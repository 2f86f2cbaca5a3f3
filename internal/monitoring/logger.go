// Package monitoring routes diagnostic output for the analysis service.
// Packages log through a Component logger ("[acquisition] ", "[hybrid] ",
// "[db] ", "[migrate] ") and the HTTP layer logs requests through Logf
// directly, so one SetLogger call redirects or silences all of it.
package monitoring

import "log"

// LogFunc is a printf-style sink.
type LogFunc func(format string, v ...interface{})

// Logf receives every diagnostic line. It is log.Printf until SetLogger
// replaces it.
var Logf LogFunc = log.Printf

func discard(string, ...interface{}) {}

// SetLogger installs f as the sink; nil silences logging, which is what
// tests that exercise noisy paths want.
func SetLogger(f LogFunc) {
	if f == nil {
		f = discard
	}
	Logf = f
}

// Component returns a logger tagging lines with "[name] ". It looks Logf up
// on every call, so components created at package init still follow a later
// SetLogger.
func Component(name string) LogFunc {
	prefix := "[" + name + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
