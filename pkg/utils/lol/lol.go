// Package lol (log of location) is a leveled logger that prints the code
// location of the log call site, with colorized level labels.
package lol

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level codes, in order of increasing verbosity.
const (
	Off = iota
	Fatal
	Error
	Warn
	Info
	Debug
	Trace
)

// LevelNames are the configuration string forms of the log levels.
var LevelNames = []string{
	"off", "fatal", "error", "warn", "info", "debug", "trace",
}

var labels = []string{
	"",
	color.New(color.FgRed, color.Bold).Sprint("FTL"),
	color.New(color.FgRed).Sprint("ERR"),
	color.New(color.FgYellow).Sprint("WRN"),
	color.New(color.FgGreen).Sprint("INF"),
	color.New(color.FgBlue).Sprint("DBG"),
	color.New(color.FgMagenta).Sprint("TRC"),
}

var (
	mx     sync.Mutex
	level  = Info
	writer io.Writer = os.Stderr
)

// GetLogLevel converts a level name into its code, defaulting to info.
func GetLogLevel(name string) (l int) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range LevelNames {
		if n == name {
			return i
		}
	}
	return Info
}

// SetLogLevel changes the global log level by name.
func SetLogLevel(name string) {
	mx.Lock()
	defer mx.Unlock()
	level = GetLogLevel(name)
}

// SetLogLevelCode changes the global log level by code.
func SetLogLevelCode(l int) {
	mx.Lock()
	defer mx.Unlock()
	level = l
}

// GetLogLevelCode returns the current global log level code.
func GetLogLevelCode() (l int) {
	mx.Lock()
	defer mx.Unlock()
	return level
}

// SetWriter redirects log output, eg to a file.
func SetWriter(w io.Writer) {
	mx.Lock()
	defer mx.Unlock()
	writer = w
}

func location(skip int) (loc string) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	// trim to the last two path elements, the package dir and file
	if i := strings.LastIndex(file, "/"); i > 0 {
		if j := strings.LastIndex(file[:i], "/"); j > 0 {
			file = file[j+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func printf(l, skip int, format string, a ...any) {
	mx.Lock()
	defer mx.Unlock()
	if l > level {
		return
	}
	msg := fmt.Sprintf(format, a...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprintf(
		writer, "%s %s %s %s", time.Now().Format(time.StampMilli),
		labels[l], msg[:len(msg)-1], color.New(color.Faint).
			Sprint(location(skip)),
	)
	fmt.Fprintln(writer)
	if l == Fatal {
		os.Exit(1)
	}
}

// Ln is a Println style logger bound to a level.
type Ln func(a ...any)

// F is a Printf style logger bound to a level.
type F func(format string, a ...any)

// S spews the value of its arguments, for debugging.
type S func(a ...any)

// Chk logs err if non-nil and reports whether it was.
type Chk func(err error) bool

// Logger is one log level's set of printers.
type Logger struct {
	Ln  Ln
	F   F
	S   S
	Chk Chk
}

// New constructs the printer set for a level.
func New(l int) (lg *Logger) {
	return &Logger{
		Ln: func(a ...any) {
			printf(l, 4, "%s", fmt.Sprintln(a...))
		},
		F: func(format string, a ...any) {
			printf(l, 4, format, a...)
		},
		S: func(a ...any) {
			printf(l, 4, "%s", fmt.Sprintf("%+v", a))
		},
		Chk: func(err error) bool {
			if err != nil {
				printf(l, 5, "%v", err)
				return true
			}
			return false
		},
	}
}
