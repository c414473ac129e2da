package worker

import (
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// asynqLogger 把 asynq 的内部日志转到 logrus。
type asynqLogger struct {
	entry *logrus.Entry
}

var _ asynq.Logger = (*asynqLogger)(nil)

func newAsynqLogger(entry *logrus.Entry) *asynqLogger {
	return &asynqLogger{entry: entry}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.entry.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }
