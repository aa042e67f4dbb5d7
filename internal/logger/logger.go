// Package logger provides the tagged console output used across the app.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// stdout resolves os.Stdout on every write so redirection after init still works.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

var (
	mu  sync.RWMutex
	out io.Writer = stdout{}
	log           = newLogger(out)
)

func newLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       !isTerminal(w),
		TimeFormat:    time.TimeOnly,
		PartsOrder:    []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, "tag", zerolog.MessageFieldName},
		FieldsExclude: []string{"tag"},
		FormatPartValueByName: func(v interface{}, name string) string {
			if name == "tag" {
				return fmt.Sprintf("[%s]", v)
			}
			return fmt.Sprint(v)
		},
	}
	return zerolog.New(cw).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if _, std := w.(stdout); std {
		f, ok = os.Stdout, true
	}
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	log = newLogger(w).Level(log.GetLevel())
}

// SetLevel sets the minimum level: debug, info, warn or error.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(lvl)
	return nil
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs a verbose message under tag.
func Debug(tag, msg string) {
	l := current()
	l.Debug().Str("tag", tag).Msg(msg)
}

// Info logs an informational message under tag.
func Info(tag, msg string) {
	l := current()
	l.Info().Str("tag", tag).Msg(msg)
}

// Success logs a completed step under tag.
func Success(tag, msg string) {
	l := current()
	l.Info().Str("tag", tag).Msg("✓ " + msg)
}

// Warn logs a recoverable problem under tag.
func Warn(tag, msg string) {
	l := current()
	l.Warn().Str("tag", tag).Msg(msg)
}

// Error logs a failure under tag.
func Error(tag, msg string) {
	l := current()
	l.Error().Str("tag", tag).Msg(msg)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(writer(), "\n  osrs-flip %s\n  Grand Exchange flip finder\n\n", version)
}

// Section prints a section header.
func Section(title string) {
	fmt.Fprintf(writer(), "\n── %s ──\n", title)
}

// Stats logs a single key/value statistic.
func Stats(key string, value interface{}) {
	l := current()
	l.Info().Str("tag", "STATS").Msg(fmt.Sprintf("%s: %v", key, value))
}

// Server logs the listen address.
func Server(addr string) {
	Success("Server", fmt.Sprintf("Listening on http://%s", addr))
}

func writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return out
}
