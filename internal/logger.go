package internal

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Log output formats accepted by SetLogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	loggerOnce sync.Once
	logger     *logrus.Logger
)

// GetLogger returns the process wide analyzer logger. It writes text at warn level until the
// loaded configuration is applied with SetLogLevel and SetLogFormat.
func GetLogger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.WarnLevel)
		formatter, _ := newFormatter(LogFormatText)
		logger.SetFormatter(formatter)
	})

	return logger
}

func SetLogLevel(level logrus.Level) {
	GetLogger().SetLevel(level)
}

// SetLogFormat switches the logger between padded text lines and JSON lines.
func SetLogFormat(format string) error {
	formatter, err := newFormatter(format)
	if err != nil {
		return err
	}
	GetLogger().SetFormatter(formatter)
	return nil
}

// ValidLogFormat reports whether format is accepted by SetLogFormat.
func ValidLogFormat(format string) bool {
	_, err := newFormatter(format)
	return err == nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", LogFormatText:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			PadLevelText:    true,
		}, nil
	case LogFormatJSON:
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported log format %q: use %s or %s", format, LogFormatText, LogFormatJSON)
}

var _ retryablehttp.LeveledLogger = &LeveledLogrus{}

// LeveledLogrus lets key/value loggers, such as the remote engine's retryable HTTP client,
// write through logrus. Every line carries a component field. Non-string keys and a trailing
// key without a value are dropped.
type LeveledLogrus struct {
	entry *logrus.Entry
}

func NewLeveledLogrus(logger *logrus.Logger, component string) *LeveledLogrus {
	return &LeveledLogrus{entry: logger.WithField("component", component)}
}

func (l *LeveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.log(logrus.ErrorLevel, msg, keysAndValues)
}

func (l *LeveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.log(logrus.WarnLevel, msg, keysAndValues)
}

func (l *LeveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.log(logrus.InfoLevel, msg, keysAndValues)
}

func (l *LeveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.log(logrus.DebugLevel, msg, keysAndValues)
}

func (l *LeveledLogrus) log(level logrus.Level, msg string, keysAndValues []interface{}) {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	l.entry.WithFields(fields).Log(level, msg)
}
