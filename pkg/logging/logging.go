// Package logging maps the five-level iexec verbosity onto a logrus logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Level is the ordered verbosity, Fatal being the quietest
type Level int

// Verbosity levels
const (
	LevelFatal Level = iota
	LevelError
	LevelWarning
	LevelInformation
	LevelDebug

	DefaultLevel = LevelWarning
)

var levelString = []string{
	"fatal",
	"error",
	"warning",
	"information",
	"debug",
}

func (l Level) String() string {
	if l >= LevelFatal && l <= LevelDebug {
		return levelString[l]
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// Increase returns the next more verbose level, clamped at Debug
func (l Level) Increase() Level {
	if l < LevelDebug {
		return l + 1
	}
	return LevelDebug
}

// Decrease returns the next quieter level, clamped at Fatal
func (l Level) Decrease() Level {
	if l > LevelFatal {
		return l - 1
	}
	return LevelFatal
}

// Clamp forces l into the valid range
func (l Level) Clamp() Level {
	switch {
	case l < LevelFatal:
		return LevelFatal
	case l > LevelDebug:
		return LevelDebug
	}
	return l
}

// Logrus returns the matching logrus level
func (l Level) Logrus() logrus.Level {
	switch l.Clamp() {
	case LevelFatal:
		return logrus.FatalLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarning:
		return logrus.WarnLevel
	case LevelInformation:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// New creates the logger handle passed through iexec. Output is plain text
// prefixed with the program name and pid since parent and child stages
// share the same stderr.
func New(w io.Writer, l Level) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	return &logrus.Logger{
		Out:       w,
		Formatter: &Formatter{Name: "iexec"},
		Hooks:     make(logrus.LevelHooks),
		Level:     l.Logrus(),
		ExitFunc:  os.Exit,
	}
}

// Formatter writes "name[pid]: message key=value ..."
type Formatter struct {
	Name string
	// Pid overrides os.Getpid, for tests
	Pid func() int
}

// Format implements logrus.Formatter
func (f *Formatter) Format(e *logrus.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}
	pid := os.Getpid
	if f.Pid != nil {
		pid = f.Pid
	}
	fmt.Fprintf(b, "%s[%d]: %s", f.Name, pid(), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
