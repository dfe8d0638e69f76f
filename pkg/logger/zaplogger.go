package logger

import "go.uber.org/zap"

// ZapLogger wraps a sugared zap logger. Caller skip is set so call
// sites of the package-level helpers show up in the log, not this file.
type ZapLogger struct {
	log *zap.SugaredLogger
}

var global *ZapLogger

func NewLogger(config zap.Config) (*ZapLogger, error) {
	base, err := config.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	global = &ZapLogger{log: base.Sugar()}
	return global, nil
}

func GetLogger() *ZapLogger {
	if global == nil {
		panic("logger not initialized")
	}
	return global
}

func (l *ZapLogger) Info(msg string, values ...any)  { l.log.Infow(msg, values...) }
func (l *ZapLogger) Warn(msg string, values ...any)  { l.log.Warnw(msg, values...) }
func (l *ZapLogger) Error(msg string, values ...any) { l.log.Errorw(msg, values...) }
func (l *ZapLogger) Debug(msg string, values ...any) { l.log.Debugw(msg, values...) }
func (l *ZapLogger) Panic(msg string, values ...any) { l.log.Panicw(msg, values...) }

func (l *ZapLogger) Fatal(err error, values ...any) {
	l.log.Fatalw(err.Error(), values...)
}

func (l *ZapLogger) Printf(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}
