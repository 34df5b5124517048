package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

var defaultLevel atomic.Int32

func init() { defaultLevel.Store(int32(zerolog.InfoLevel)) }

// SetLevel sets the level of loggers created afterwards when LOG_LEVEL is
// unset.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	defaultLevel.Store(int32(lvl))
	return nil
}

// NewZerologLogger creates a ZerologLogger writing to stderr so that
// commands can stream results on stdout. APP_ENV=dev switches to a console
// writer; LOG_LEVEL overrides the level given to SetLevel.
func NewZerologLogger(component string) Logger {
	var out io.Writer = os.Stderr
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = zerolog.Level(defaultLevel.Load()).String()
	}
	return NewWithWriter(out, component, level)
}

// NewWithWriter builds a logger on an arbitrary writer. An empty or unknown
// level falls back to info.
func NewWithWriter(w io.Writer, component, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
