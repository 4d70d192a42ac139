package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// LogLevel is a logger's minimum severity.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns level's name.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Configuration controls where and at what level a Logger writes.
type Configuration struct {
	Level LogLevel `json:"level"`
	// Console enables writing to stdout.
	Console bool `json:"console"`
	// File enables writing to FilePath, through a rotating writer.
	File bool `json:"file"`
	// FilePath is the log file's path. Required when File is set.
	FilePath string `json:"file_path"`
	// Rotation controls when FilePath is rotated and how backups age out.
	Rotation RotationConfig `json:"rotation"`
}

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}

// Logger writes leveled, optionally structured log lines to one or
// more destinations.
type Logger struct {
	logger     *log.Logger
	level      LogLevel
	config     Configuration
	writer     io.Writer
	fileWriter *RotateWriter
}

// NewLogger returns a Logger writing to the console and to
// logs/app.log, rotated at 50MB / 7 days / 10 backups.
func NewLogger() *Logger {
	return NewLoggerWithConfig(Configuration{
		Level:    INFO,
		Console:  true,
		File:     true,
		FilePath: filepath.Join("logs", "app.log"),
		Rotation: RotationConfig{
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 10,
			LocalTime:  true,
			Compress:   true,
		},
	})
}

// New is an alias for NewLogger.
func New() *Logger {
	return NewLogger()
}

// NewLoggerWithConfig builds a Logger from an explicit configuration.
// A failure to create the log directory or file falls back to
// console-only output rather than failing the caller.
func NewLoggerWithConfig(config Configuration) *Logger {
	if config.File && config.FilePath != "" {
		dir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("failed to create log directory: %v", err)
		}
	}

	var writer io.Writer
	var fileWriter *RotateWriter

	writers := []io.Writer{}

	if config.Console {
		writers = append(writers, os.Stdout)
	}

	if config.File && config.FilePath != "" {
		var err error
		fileWriter, err = NewRotateWriter(config.FilePath, config.Rotation)
		if err != nil {
			log.Printf("failed to create log file: %v", err)
		} else {
			writers = append(writers, fileWriter)
		}
	}

	if len(writers) > 0 {
		writer = NewMultiWriter(writers...)
	} else {
		writer = os.Stdout
	}

	return &Logger{
		logger:     log.New(writer, "", log.LstdFlags),
		level:      config.Level,
		config:     config,
		writer:     writer,
		fileWriter: fileWriter,
	}
}

// SetLevel changes the minimum severity logged from this point on.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// log writes one line if level meets the logger's threshold, tagged
// with the caller's file, line, and function name two frames up the
// stack (the exported Debug/Info/... wrapper, then its caller).
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "???"
		line = 0
	}
	fn := runtime.FuncForPC(pc)
	var funcName string
	if fn == nil {
		funcName = "???"
	} else {
		funcName = fn.Name()
		if idx := strings.LastIndex(funcName, "."); idx >= 0 {
			funcName = funcName[idx+1:]
		}
	}
	filename := filepath.Base(file)

	var message string
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	} else {
		message = format
	}

	l.logger.Printf("[%s] %s:%d %s() %s", level.String(), filename, line, funcName, message)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Fatal logs a fatal message and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
	os.Exit(1)
}

// fieldString renders fields as "k=v k=v ..." with a leading space, or
// the empty string if fields is empty.
func fieldString(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// WithFields logs message at info level with fields appended.
func (l *Logger) WithFields(message string, fields Fields) {
	l.Info("%s%s", message, fieldString(fields))
}

// DebugWithFields logs message at debug level with fields appended.
func (l *Logger) DebugWithFields(message string, fields Fields) {
	l.Debug("%s%s", message, fieldString(fields))
}

// ErrorWithFields logs message at error level with fields appended.
func (l *Logger) ErrorWithFields(message string, fields Fields) {
	l.Error("%s%s", message, fieldString(fields))
}

// WarnWithFields logs message at warn level with fields appended.
func (l *Logger) WarnWithFields(message string, fields Fields) {
	l.Warn("%s%s", message, fieldString(fields))
}

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	if l.fileWriter != nil {
		return l.fileWriter.Close()
	}
	return nil
}

// Start is a no-op, present so Logger can satisfy interfaces expecting
// a startable/stoppable component.
func (l *Logger) Start() error {
	return nil
}

// Stop closes the logger's resources.
func (l *Logger) Stop() error {
	return l.Close()
}
