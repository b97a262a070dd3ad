package cli

import (
	"fmt"
	"io"
	"strings"

	session "github.com/goliatone/go-auth-session"
)

// logger writes component logs to stderr so command output stays clean.
// Debug and Info lines are only shown with --verbose.
type logger struct {
	w       io.Writer
	name    string
	verbose bool
}

var _ session.Logger = logger{}
var _ session.LoggerProvider = logger{}

func newLogger(w io.Writer, verbose bool) logger {
	return logger{w: w, name: appName, verbose: verbose}
}

func (l logger) GetLogger(name string) session.Logger {
	return logger{w: l.w, name: name, verbose: l.verbose}
}

func (l logger) Debug(format string, args ...any) {
	if l.verbose {
		l.print("DBG", format, args...)
	}
}

func (l logger) Info(format string, args ...any) {
	if l.verbose {
		l.print("INF", format, args...)
	}
}

func (l logger) Warn(format string, args ...any) {
	l.print("WRN", format, args...)
}

func (l logger) Error(format string, args ...any) {
	l.print("ERR", format, args...)
}

func (l logger) print(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.w, "[%s] %s %s\n", level, l.name, strings.TrimRight(msg, "\n"))
}
