// Package events writes the persistent flight event log: link state
// changes, received commands and board handshake results, one JSON
// record per line in rolling files.
package events

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/link"
)

// Config controls the event log files.
type Config struct {
	Enable     bool   `mapstructure:"enable" yaml:"enable"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Log is the event logger. A nil *Log discards everything.
type Log struct {
	logger  *zap.Logger
	session string
	closer  func() error
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

// New opens the event log. A disabled config yields a Log that
// discards records.
func New(conf Config) (*Log, error) {
	if !conf.Enable || conf.Filename == "" {
		return NewWithCore(zapcore.NewNopCore()), nil
	}
	lj := &lumberjack.Logger{
		Filename:   conf.Filename,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(lj), zapcore.InfoLevel)
	l := NewWithCore(core)
	l.closer = lj.Close
	return l, nil
}

// NewWithCore creates a Log writing to core.
func NewWithCore(core zapcore.Core) *Log {
	session := uuid.NewString()
	return &Log{
		logger:  zap.New(core).With(zap.String("session", session)),
		session: session,
	}
}

// Session identifies this process run in every record.
func (l *Log) Session() string {
	if l == nil {
		return ""
	}
	return l.session
}

// Event writes a free-form record.
func (l *Log) Event(name string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.logger.Info(name, fields...)
}

// LinkStateChanged implements link.StateNotifier.
func (l *Log) LinkStateChanged(lk *link.Link, open bool, err error) {
	if l == nil {
		return
	}
	fields := []zap.Field{
		zap.String("link", lk.Name),
		zap.String("type", string(lk.Config.Type)),
		zap.String("address", lk.Config.Address()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if open {
		l.logger.Info("link opened", fields...)
	} else {
		l.logger.Warn("link closed", fields...)
	}
}

// CommandObserved implements command.Observer.
func (l *Log) CommandObserved(line string, outcome command.Outcome, err error) {
	if l == nil {
		return
	}
	fields := []zap.Field{zap.String("line", line), zap.String("outcome", string(outcome))}
	switch outcome {
	case command.Executed, command.Duplicate:
		l.logger.Info("remote command", fields...)
	default:
		l.logger.Warn("remote command", append(fields, zap.Error(err))...)
	}
}

// StepCompleted implements board.StepObserver.
func (l *Log) StepCompleted(r board.StepResult) {
	if l == nil {
		return
	}
	fields := []zap.Field{
		zap.String("step", r.Step.Name),
		zap.Stringer("id", r.Step.ID),
		zap.Bool("acked", r.Acked),
		zap.Duration("elapsed", r.Elapsed),
	}
	if r.Acked {
		l.logger.Info("board config", fields...)
	} else {
		l.logger.Warn("board config", append(fields, zap.Error(r.Err))...)
	}
}

// Close flushes and closes the log files.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.logger.Sync()
	if l.closer != nil {
		return l.closer()
	}
	return nil
}
