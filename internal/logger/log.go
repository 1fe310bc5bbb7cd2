package logger

// Log is the subset of Logger the services depend on, so tests can swap
// in a no-op without touching the filesystem.
type Log interface {
	Debug(category, message string)
	Info(category, message string)
	Warn(category, message string)
	Error(category, message string)
}

type nopLogger struct{}

func (nopLogger) Debug(string, string) {}
func (nopLogger) Info(string, string)  {}
func (nopLogger) Warn(string, string)  {}
func (nopLogger) Error(string, string) {}

// Nop returns a logger that discards everything.
func Nop() Log { return nopLogger{} }
