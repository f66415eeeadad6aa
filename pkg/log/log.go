// Package log provides a simple, level-gated logger used across pmcore.
//
// Time/date are not logged by default because systemd adds them for us;
// call SetLogDateTime(true) to override. Uses the prefixes documented at
// https://www.freedesktop.org/software/systemd/man/sd-daemon.html so that
// journald can pick up the severity from the leading "<N>" token.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	NotePrefix  string = "<5>[NOTICE]   "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
	CritPrefix  string = "<2>[CRITICAL] "
)

var (
	DebugLog = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  = log.New(InfoWriter, InfoPrefix, 0)
	NoteLog  = log.New(NoteWriter, NotePrefix, log.Lshortfile)
	WarnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	CritLog  = log.New(CritWriter, CritPrefix, log.Llongfile)

	DebugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	NoteTimeLog  = log.New(NoteWriter, NotePrefix, log.LstdFlags|log.Lshortfile)
	WarnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	CritTimeLog  = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards all writers below lvl, cumulatively (e.g. "warn"
// silences debug/info/notice as well).
func SetLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "notice":
		NoteWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing to discard
	default:
		fmt.Fprintf(os.Stderr, "pkg/log: invalid loglevel %q, using debug\n", lvl)
		SetLevel("debug")
	}
}

func SetLogDateTime(v bool) { logDateTime = v }

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Print(v ...interface{}) { Info(v...) }

func Debug(v ...interface{}) {
	if DebugWriter != io.Discard {
		out(DebugLog, DebugTimeLog, printStr(v...))
	}
}

func Info(v ...interface{}) {
	if InfoWriter != io.Discard {
		out(InfoLog, InfoTimeLog, printStr(v...))
	}
}

func Note(v ...interface{}) {
	if NoteWriter != io.Discard {
		out(NoteLog, NoteTimeLog, printStr(v...))
	}
}

func Warn(v ...interface{}) {
	if WarnWriter != io.Discard {
		out(WarnLog, WarnTimeLog, printStr(v...))
	}
}

func Error(v ...interface{}) {
	if ErrWriter != io.Discard {
		out(ErrLog, ErrTimeLog, printStr(v...))
	}
}

func Crit(v ...interface{}) {
	if CritWriter != io.Discard {
		out(CritLog, CritTimeLog, printStr(v...))
	}
}

// Panic writes an error log entry, then panics (keeps the process alive
// under a recover(), unlike Fatal).
func Panic(v ...interface{}) {
	Error(v...)
	panic("pmcore: panic triggered by log.Panic")
}

// Fatal writes an error log entry and terminates the process.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func out(l, lt *log.Logger, s string) {
	if logDateTime {
		lt.Output(3, s)
	} else {
		l.Output(3, s)
	}
}

func printfStr(format string, v ...interface{}) string { return fmt.Sprintf(format, v...) }

func Printf(format string, v ...interface{}) { Infof(format, v...) }

func Debugf(format string, v ...interface{}) {
	if DebugWriter != io.Discard {
		out(DebugLog, DebugTimeLog, printfStr(format, v...))
	}
}

func Infof(format string, v ...interface{}) {
	if InfoWriter != io.Discard {
		out(InfoLog, InfoTimeLog, printfStr(format, v...))
	}
}

func Notef(format string, v ...interface{}) {
	if NoteWriter != io.Discard {
		out(NoteLog, NoteTimeLog, printfStr(format, v...))
	}
}

func Warnf(format string, v ...interface{}) {
	if WarnWriter != io.Discard {
		out(WarnLog, WarnTimeLog, printfStr(format, v...))
	}
}

func Errorf(format string, v ...interface{}) {
	if ErrWriter != io.Discard {
		out(ErrLog, ErrTimeLog, printfStr(format, v...))
	}
}

func Critf(format string, v ...interface{}) {
	if CritWriter != io.Discard {
		out(CritLog, CritTimeLog, printfStr(format, v...))
	}
}

func Panicf(format string, v ...interface{}) {
	Errorf(format, v...)
	panic("pmcore: panic triggered by log.Panicf")
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}
