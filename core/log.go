package core

import (
	"os"

	"github.com/rs/zerolog"
)

type Log interface {
	Info() *zerolog.Event
	Debug() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

type nopLog struct{}

func (nopLog) Info() *zerolog.Event  { l := zerolog.Nop(); return l.Info() }
func (nopLog) Debug() *zerolog.Event { l := zerolog.Nop(); return l.Debug() }
func (nopLog) Warn() *zerolog.Event  { l := zerolog.Nop(); return l.Warn() }
func (nopLog) Error() *zerolog.Event { l := zerolog.Nop(); return l.Error() }

type stdLog struct {
	logger zerolog.Logger
}

func NewStdLog() Log {
	return &stdLog{
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// NewLog wraps an existing zerolog logger.
func NewLog(logger zerolog.Logger) Log {
	return &stdLog{logger: logger}
}

func (l *stdLog) Info() *zerolog.Event  { return l.logger.Info() }
func (l *stdLog) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *stdLog) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *stdLog) Error() *zerolog.Event { return l.logger.Error() }
