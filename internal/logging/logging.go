package logging

import "log"

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type stdLogger struct {
	prefix string
}

// New returns a Logger writing through the standard log package.
func New(prefix string) Logger {
	return stdLogger{prefix: prefix}
}

func (l stdLogger) Debug(format string, args ...any) {
	log.Printf("[DBG] "+l.prefix+" "+format, args...)
}

func (l stdLogger) Info(format string, args ...any) {
	log.Printf("[INF] "+l.prefix+" "+format, args...)
}

func (l stdLogger) Error(format string, args ...any) {
	log.Printf("[ERR] "+l.prefix+" "+format, args...)
}

type nopLogger struct{}

func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
