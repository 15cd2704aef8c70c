package logger

import "github.com/rs/zerolog"

// CronLogger adapta Logger a la interfaz cron.Logger de robfig/cron/v3
type CronLogger struct {
	l *Logger
}

// ForCron devuelve el adaptador para cron
func (l *Logger) ForCron() CronLogger {
	return CronLogger{l: l}
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(c.l.zl.Debug(), keysAndValues).Msg(msg)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	withFields(c.l.zl.Error().Err(err), keysAndValues).Msg(msg)
}

func withFields(e *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keysAndValues[i+1])
	}
	return e
}
