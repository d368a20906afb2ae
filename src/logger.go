package src

import "go.uber.org/zap"

// Logger is the logging surface the storage layers depend on.
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Sync() error
}

var _ Logger = (*zap.SugaredLogger)(nil)

type NoOpLogger struct{}

func (NoOpLogger) Debugf(string, ...any) {}
func (NoOpLogger) Infof(string, ...any)  {}
func (NoOpLogger) Warnf(string, ...any)  {}
func (NoOpLogger) Errorf(string, ...any) {}
func (NoOpLogger) Sync() error           { return nil }

var _ Logger = NoOpLogger{}
