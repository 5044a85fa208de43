// Package logx provides a simple way of logging with different levels.
// Time/Date are not logged on purpose because systemd adds them for us,
// unless SetLogDateTime(true) is called for non-systemd deployments.
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]  "
	InfoPrefix  string = "<6>[INFO]   "
	WarnPrefix  string = "<4>[WARNING]"
	ErrPrefix   string = "<3>[ERROR]  "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  = log.New(InfoWriter, InfoPrefix, 0)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	debugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	warnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

func init() {
	if lvl, ok := os.LookupEnv("LOGLEVEL"); ok {
		SetLevel(lvl)
	}
}

// SetLevel mutes writers below the given level: debug, info, warn, err/fatal.
func SetLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing muted
	default:
		Warnf("logx: invalid LOGLEVEL %q, keeping previous level", lvl)
	}
}

func SetLogDateTime(v bool) { logDateTime = v }

func Debug(v ...interface{}) { emit(DebugWriter, debugLog, debugTimeLog, fmt.Sprint(v...)) }
func Info(v ...interface{})  { emit(InfoWriter, infoLog, infoTimeLog, fmt.Sprint(v...)) }
func Warn(v ...interface{})  { emit(WarnWriter, warnLog, warnTimeLog, fmt.Sprint(v...)) }
func Error(v ...interface{}) { emit(ErrWriter, errLog, errTimeLog, fmt.Sprint(v...)) }

func Debugf(format string, v ...interface{}) { emit(DebugWriter, debugLog, debugTimeLog, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { emit(InfoWriter, infoLog, infoTimeLog, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { emit(WarnWriter, warnLog, warnTimeLog, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { emit(ErrWriter, errLog, errTimeLog, fmt.Sprintf(format, v...)) }

// Fatal logs the error and terminates the process with exit status 1.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

func emit(w io.Writer, plain, timed *log.Logger, msg string) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		timed.Output(3, msg)
	} else {
		plain.Output(3, msg)
	}
}

// Ctx carries the run/file identity that should prefix every log line
// emitted while processing one file, so lines from different runs stay
// distinguishable in a shared log stream.
type Ctx struct {
	RunID  int64
	FileID string
}

func (c Ctx) String() string {
	return fmt.Sprintf("run=%d file=%s", c.RunID, c.FileID)
}

func (c Ctx) Infof(format string, v ...interface{}) {
	Infof("[%s] "+format, append([]interface{}{c.String()}, v...)...)
}

func (c Ctx) Warnf(format string, v ...interface{}) {
	Warnf("[%s] "+format, append([]interface{}{c.String()}, v...)...)
}

func (c Ctx) Errorf(format string, v ...interface{}) {
	Errorf("[%s] "+format, append([]interface{}{c.String()}, v...)...)
}
