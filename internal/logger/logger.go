package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

func init() {
	// Initialize with a default logger (info level, stderr console output)
	// Can be reconfigured later with Init()
	Init(string(InfoLevel), !isatty.IsTerminal(os.Stderr.Fd()))
}

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "DEBUG"
	InfoLevel  LogLevel = "INFO"
	WarnLevel  LogLevel = "WARN"
	FatalLevel LogLevel = "FATAL"
)

// ParseLevel maps a level name (case-insensitive) to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO", "":
		return zerolog.InfoLevel, nil
	case "WARN", "WARNING":
		return zerolog.WarnLevel, nil
	case "FATAL":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q (valid options are: DEBUG, INFO, WARN, FATAL)", level)
	}
}

// ValidLevel reports whether level is one of DEBUG, INFO, WARN, FATAL.
func ValidLevel(level string) bool {
	_, err := ParseLevel(level)
	return err == nil
}

// Init initializes the global logger with the specified level and colour mode.
// Unknown levels fall back to INFO.
func Init(level string, noColor bool) {
	InitWithWriter(os.Stderr, level, noColor)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(out io.Writer, level string, noColor bool) {
	zlLevel, err := ParseLevel(level)
	if err != nil {
		zlLevel = zerolog.InfoLevel
	}

	// Set global log level
	zerolog.SetGlobalLevel(zlLevel)

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
		FormatLevel: func(i interface{}) string {
			return formatLevel(i, noColor)
		},
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Logger()

	// Set as global logger
	log.Logger = Logger
}

// ColorDisabled reports whether colour output should be off given the
// --no-color flag and whether stderr is a terminal.
func ColorDisabled(noColorFlag bool) bool {
	if noColorFlag {
		return true
	}
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	return !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
}

var levelTags = map[string]struct{ tag, color string }{
	zerolog.LevelDebugValue: {"DBUG", "\x1b[0;106m"},
	zerolog.LevelInfoValue:  {"INFO", "\x1b[0;102m"},
	zerolog.LevelWarnValue:  {"WARN", "\x1b[0;105m"},
	zerolog.LevelErrorValue: {"ERRO", "\x1b[0;101m"},
	zerolog.LevelFatalValue: {"FATL", "\x1b[0;101m"},
}

func formatLevel(i interface{}, noColor bool) string {
	name, _ := i.(string)
	lt, ok := levelTags[name]
	if !ok {
		return "[????]"
	}
	if noColor {
		return "[" + lt.tag + "]"
	}
	return lt.color + "[" + lt.tag + "]\x1b[0m"
}

// WithComponent returns a logger with a component field set
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

// FatalErr logs err at fatal level without exiting, so deferred teardown
// still runs. The caller owns the exit code.
func FatalErr(err error, msg string) {
	Logger.WithLevel(zerolog.FatalLevel).Err(err).Msg(msg)
}
