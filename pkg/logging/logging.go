package logging

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
)

var (
	logger *slog.Logger

	programLevel = new(slog.LevelVar) // Info by default

	loggingDebug = flag.Bool("logging.debug", false, "Enable debug logging")
)

func init() {
	if *loggingDebug {
		programLevel.Set(slog.LevelDebug)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel}))
}

// Logger is the logging interface handed through system.Node so subsystems
// don't depend on a concrete logger.
type Logger interface {
	Info(a ...any)
	Infof(format string, v ...interface{})
	Error(a ...any)
	Errorf(format string, v ...interface{})
	Debug(a ...any)
	Debugf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
}

type defaultLogger struct{}

// NewDefaultLogger returns a Logger backed by the package-level slog logger.
func NewDefaultLogger() Logger {
	return defaultLogger{}
}

func (defaultLogger) Info(a ...any)                          { Info(a...) }
func (defaultLogger) Infof(format string, v ...interface{})  { Infof(format, v...) }
func (defaultLogger) Error(a ...any)                         { Error(a...) }
func (defaultLogger) Errorf(format string, v ...interface{}) { Errorf(format, v...) }
func (defaultLogger) Debug(a ...any)                         { Debug(a...) }
func (defaultLogger) Debugf(format string, v ...interface{}) { Debugf(format, v...) }
func (defaultLogger) Fatalf(format string, v ...interface{}) { Fatalf(format, v...) }

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func Info(a ...any) {
	logger.Info(fmt.Sprint(a...))
}

func Infof(format string, v ...interface{}) {
	logger.Info(fmt.Sprintf(format, v...))
}

func Error(a ...any) {
	logger.Error(fmt.Sprint(a...))
}

func Errorf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf(format, v...))
}

func Debug(a ...any) {
	logger.Debug(fmt.Sprint(a...))
}

func Debugf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf(format, v...))
}

func Debugln(a ...any) {
	logger.Debug(fmt.Sprintln(a...))
}

func Fatalf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}
