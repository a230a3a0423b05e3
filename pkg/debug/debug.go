// Package debug builds the console logger used by the command line.
package debug

import (
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Options configures NewLogger.
type Options struct {
	Debug bool
	Trace bool
	// Color enables ANSI colors in the console output and the caller field.
	Color bool
	// TimeFormat overrides the millisecond timestamp.
	TimeFormat string
}

// NewLogger returns a console logger writing to w at info level, or lower
// when Debug or Trace is set.
func NewLogger(w io.Writer, opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case opts.Trace:
		level = zerolog.TraceLevel
	case opts.Debug:
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{
		Out:     w,
		NoColor: !opts.Color,
	}

	logger := zerolog.New(out).Level(level).Hook(CustomTimeHook{WithColor: opts.Color, Format: opts.TimeFormat})
	if level <= zerolog.DebugLevel {
		logger = logger.Hook(CustomCallerHook{WithColor: opts.Color})
	}
	return logger
}

func callerSkipFrameCount(e *zerolog.Event) int {
	v := reflect.ValueOf(e).Elem()
	field := v.FieldByName("skipFrame")
	if field.IsValid() {
		return int(field.Int())
	}
	return 0
}

type CustomTimeHook struct {
	WithColor bool
	Format    string
}

func (t CustomTimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := t.Format
	if format == "" {
		// millisecond precision, no timezone
		format = "2006-01-02T15:04:05.0000Z"
	}
	str := time.Now().Format(format)
	if t.WithColor {
		str = color.New(color.Faint).Sprint(str)
	}
	e.Str("time", str)
}

type CustomCallerHook struct {
	WithColor bool
}

func (c CustomCallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(callerSkipFrameCount(e) + 3)
	if !ok {
		return
	}

	pkg, _ := GetPackageAndFuncFromFuncName(runtime.FuncForPC(pc).Name())

	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

// GetPackageAndFuncFromFuncName splits a runtime function name such as
// "github.com/walteh/tmscope/pkg/scanner.(*Scanner).Next".
func GetPackageAndFuncFromFuncName(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}

	firstDot := strings.IndexByte(name[lastSlash:], '.') + lastSlash
	if firstDot < lastSlash {
		return name, ""
	}

	pkg = name[:firstDot]
	function = name[firstDot+1:]

	if strings.Contains(pkg, ".(") {
		splt := strings.Split(pkg, ".(")
		pkg = splt[0]
		function = "(" + splt[1] + "." + function
	}

	return pkg, function
}

func FormatCaller(pkg, path string, number int, colorize bool) string {
	p := FileNameOfPath(path)
	if colorize {
		p = color.New(color.Bold).Sprint(p)
		num := color.New(color.FgHiRed, color.Bold).Sprintf("%d", number)
		sep := color.New(color.Faint).Sprint(":")

		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, p, sep, num)
	}

	return fmt.Sprintf("%s:%s:%d", pkg, p, number)
}

func FileNameOfPath(path string) string {
	tot := strings.Split(path, "/")
	if len(tot) > 1 {
		return tot[len(tot)-1]
	}

	return path
}
