// Package logging provides the structured host-side logger and the entry
// formatter the Debug Dispatcher's log-enqueue path consumes. Grounded on
// the teacher's go.mod declaring github.com/charmbracelet/log as its
// logging dependency — a library the teacher's own source never actually
// calls (confirmed by grep across src/ and cmd/) — wired in here for real.
package logging

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Sink receives formatted log entries for transport enqueue (spec.md
// §4.6's on_log). The Debug Dispatcher implements Sink.
type Sink interface {
	OnLog(severity Severity, entry string)
}

// Logger formats entries per spec.md §6's text layout and fans them out to
// both a local charmbracelet/log console logger (for host-side
// observability while developing against the transport) and a Sink (the
// wire transport's log channel).
type Logger struct {
	console *charmlog.Logger
	sink    Sink

	mu       sync.Mutex
	lastEmit time.Time
	haveLast bool
}

// New builds a Logger writing host-side console output to w (os.Stderr if
// nil) via charmlog and forwarding formatted entries to sink.
func New(w io.Writer, sink Sink) *Logger {
	if w == nil {
		w = os.Stderr
	}
	console := charmlog.NewWithOptions(w, charmlog.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	return &Logger{console: console, sink: sink}
}

// Log formats one entry at the given severity (captured from the caller
// two frames up, i.e. the site that invoked Errorf/Warnf/etc.) and
// forwards it to both the console and the Sink.
func (l *Logger) Log(severity Severity, msg string) {
	entry := l.format(severity, msg)
	l.emitConsole(severity, entry)
	if l.sink != nil {
		l.sink.OnLog(severity, entry)
	}
}

func (l *Logger) Errorf(format string, args ...any) { l.Log(SeverityErr, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.Log(SeverityWrn, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.Log(SeverityInf, fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...any) { l.Log(SeverityDbg, fmt.Sprintf(format, args...)) }

func (l *Logger) emitConsole(severity Severity, entry string) {
	switch severity {
	case SeverityErr:
		l.console.Error(entry)
	case SeverityWrn:
		l.console.Warn(entry)
	case SeverityDbg, SeverityCor:
		l.console.Debug(entry)
	default:
		l.console.Info(entry)
	}
}

// format builds "YYYY-MM-DD  HH:MM:SS.mmm  ±S.mmm  <SEV>  <function>
// <file>:<line>  <msg>" per spec.md §6, with the delta saturated at
// +9.999/>9.999 seconds since the previous formatted entry.
func (l *Logger) format(severity Severity, msg string) string {
	now := time.Now()

	l.mu.Lock()
	var delta time.Duration
	if l.haveLast {
		delta = now.Sub(l.lastEmit)
	}
	l.lastEmit = now
	l.haveLast = true
	l.mu.Unlock()

	_, file, line, ok := runtime.Caller(3)
	if !ok {
		file, line = "?", 0
	} else if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}

	fn := callerFuncName(4)

	var sb strings.Builder
	sb.WriteString(now.Format("2006-01-02"))
	sb.WriteString("  ")
	sb.WriteString(now.Format("15:04:05.000"))
	sb.WriteString("  ")
	sb.WriteString(formatDelta(delta))
	sb.WriteString("  ")
	sb.WriteString(severity.String())
	sb.WriteString("  ")
	sb.WriteString(fn)
	sb.WriteString("  ")
	sb.WriteString(file)
	sb.WriteByte(':')
	fmt.Fprintf(&sb, "%d", line)
	sb.WriteString("  ")
	sb.WriteString(msg)
	return sb.String()
}

func callerFuncName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?"
	}
	name := fn.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func formatDelta(d time.Duration) string {
	secs := d.Seconds()
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	if secs > 9.999 {
		return sign + ">9.999"
	}
	return fmt.Sprintf("%s%.3f", sign, secs)
}
