package contracts

import "time"

// LogLevel represents the minimum severity a Logger emits.
// The zero value means "not set" and is replaced by InfoLevel during option setup.
type LogLevel int

const (
	// DebugLevel emits scheduler and transport detail useful when tracing playback.
	DebugLevel LogLevel = iota + 1
	// InfoLevel emits lifecycle messages such as loads and transport changes.
	InfoLevel
	// WarnLevel emits recoverable problems: dropped notes, instrument fallbacks.
	WarnLevel
	// ErrorLevel emits failures that aborted an operation.
	ErrorLevel
	// FatalLevel emits a message and terminates the process.
	FatalLevel
)

// LogDestination specifies where the log messages should be directed.
type LogDestination string

const (
	// ConsoleLog directs log messages to standard error.
	ConsoleLog LogDestination = "console"
	// FileLog directs log messages to a file.
	FileLog LogDestination = "file"
)

// Field is a typed key/value attached to a log entry. Field() on a Logger
// returns a builder; each method returns a new Field holding one pair.
type Field interface {
	Bool(key string, val bool) Field
	Int(key string, val int) Field
	Float64(key string, val float64) Field
	String(key string, val string) Field
	Time(key string, val time.Time) Field
	Duration(key string, val time.Duration) Field
	Int64(key string, val int64) Field
	Error(key string, val error) Field
	Uint64(key string, val uint64) Field
	Uint8(key string, val uint8) Field
}

// Logger is the logging surface every component receives through options.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Field() Field

	SetLevel(level LogLevel)
	SetDestination(dest LogDestination, filePath ...string)
}
