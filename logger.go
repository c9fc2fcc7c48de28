package mpegts

import "github.com/asticode/go-astikit"

// Logger is the richer logging surface every component in this module
// takes at construction time, instead of reading a package-level global the
// way the teacher's original logger.go does. astikit.AdaptStdLogger's return
// value satisfies it.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
}

// AdaptLogger wraps l (nil-safe, and nil-able itself) into a Logger. l is
// anything with astikit.StdLogger's minimal Print-style interface: the
// *journallog.Logger every cmd/* main in this module passes, or a bare
// *log.Logger.
func AdaptLogger(l astikit.StdLogger) Logger {
	return astikit.AdaptStdLogger(l)
}

func defaultLogger() Logger {
	return astikit.AdaptStdLogger(nil)
}
