package logsvc

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

// ConsoleLogger writes structured logs through zerolog.
type ConsoleLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*ConsoleLogger)(nil)

// NewConsoleLogger returns a logger tagged with component ("API", "DB", ...).
// Output is human readable in debug mode and JSON otherwise.
func NewConsoleLogger(w io.Writer, component string, debug bool) *ConsoleLogger {
	if debug {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
	return &ConsoleLogger{zl: zl}
}

// NewStdoutLogger is NewConsoleLogger writing to stdout.
func NewStdoutLogger(component string, debug bool) *ConsoleLogger {
	return NewConsoleLogger(os.Stdout, component, debug)
}

// NewNopLogger discards everything.
func NewNopLogger() *ConsoleLogger {
	return &ConsoleLogger{zl: zerolog.Nop()}
}

func (l ConsoleLogger) log(ev *zerolog.Event, msg string, args []interface{}) {
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			ev = ev.Err(a)
		case map[string]interface{}:
			ev = ev.Fields(a)
		case user.User:
			ev = ev.Dict("user", zerolog.Dict().Str("id", a.ID).Str("email", a.Email))
		default:
			ev = ev.Interface(fmt.Sprintf("arg%d", i), a)
		}
	}
	ev.Msg(msg)
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) { l.log(l.zl.Debug(), msg, args) }
func (l ConsoleLogger) Info(msg string, args ...interface{})  { l.log(l.zl.Info(), msg, args) }
func (l ConsoleLogger) Warn(msg string, args ...interface{})  { l.log(l.zl.Warn(), msg, args) }
func (l ConsoleLogger) Error(msg string, args ...interface{}) { l.log(l.zl.Error(), msg, args) }

// Fatal logs then exits with status 1.
func (l ConsoleLogger) Fatal(msg string, args ...interface{}) { l.log(l.zl.Fatal(), msg, args) }
