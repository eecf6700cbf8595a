// Package log provides the process-wide logger used by every component of
// the ingestion core and its surrounding binary.
package log

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the root logger. Components take a log.Logger by constructor
// argument rather than calling this directly, but the binary's entrypoint
// and anything initialized before dependency injection (flag parsing,
// config loading) logs through it.
var Logger = newLogger()

func newLogger() log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(l, level.AllowInfo())
}

// SetLevel narrows Logger's allowed level. Valid values are "debug", "info",
// "warn" and "error"; any other value leaves the current filter in place.
func SetLevel(lvl string) {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	switch lvl {
	case "debug":
		Logger = level.NewFilter(l, level.AllowDebug())
	case "warn":
		Logger = level.NewFilter(l, level.AllowWarn())
	case "error":
		Logger = level.NewFilter(l, level.AllowError())
	case "info":
		Logger = level.NewFilter(l, level.AllowInfo())
	}
}
