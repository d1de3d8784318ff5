package log

import (
	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	*logrus.Entry
}

// NewLogrus returns a Logger backed by a logrus entry.
func NewLogrus(l *logrus.Entry) Logger {
	return logrusLogger{Entry: l}
}

func (l logrusLogger) WithKV(kv KV) Logger {
	return logrusLogger{Entry: l.Entry.WithFields(logrus.Fields(kv))}
}
