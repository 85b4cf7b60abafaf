package logger

// Logger is a minimal structured logging interface. Implementations accept
// alternating key/value pairs as variadic arguments. Keeping it this small
// makes it trivial to mock in tests and to bridge onto whatever logging
// stack the host service runs.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
