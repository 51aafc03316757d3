package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

type Logger struct {
	mu    sync.RWMutex
	level Level
	log   *log.Logger
}

func New(level Level) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter lets tests capture output
func NewWithWriter(level Level, w io.Writer) *Logger {
	return &Logger{
		level: level,
		log:   log.New(w, "", 0),
	}
}

// ParseLevel maps LOG_LEVEL values to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) formatMessage(level Level, format string, v ...interface{}) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	levelName := levelNames[level]
	message := fmt.Sprintf(format, v...)
	return fmt.Sprintf("[%s] [%s] %s", timestamp, levelName, message)
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level <= level
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(DEBUG) {
		l.log.Print(l.formatMessage(DEBUG, format, v...))
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(INFO) {
		l.log.Print(l.formatMessage(INFO, format, v...))
	}
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l.enabled(WARN) {
		l.log.Print(l.formatMessage(WARN, format, v...))
	}
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(ERROR) {
		l.log.Print(l.formatMessage(ERROR, format, v...))
	}
}

// Invariant logs a broken invariant. Always emitted regardless of level.
func (l *Logger) Invariant(format string, v ...interface{}) {
	l.log.Print(l.formatMessage(ERROR, "INVARIANT "+format, v...))
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	if l.enabled(FATAL) {
		l.log.Fatal(l.formatMessage(FATAL, format, v...))
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns current logging level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Global logger instance
var defaultLogger = New(INFO)

// Default returns the process-wide logger
func Default() *Logger { return defaultLogger }

// Package-level functions for easy access
func Debug(format string, v ...interface{})     { defaultLogger.Debug(format, v...) }
func Info(format string, v ...interface{})      { defaultLogger.Info(format, v...) }
func Warn(format string, v ...interface{})      { defaultLogger.Warn(format, v...) }
func Error(format string, v ...interface{})     { defaultLogger.Error(format, v...) }
func Invariant(format string, v ...interface{}) { defaultLogger.Invariant(format, v...) }
func Fatal(format string, v ...interface{})     { defaultLogger.Fatal(format, v...) }

// SetGlobalLevel sets the level for the global logger
func SetGlobalLevel(level Level) {
	defaultLogger.SetLevel(level)
}
