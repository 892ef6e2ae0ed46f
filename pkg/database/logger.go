package database

import (
	"strings"
	"sync/atomic"

	"parley.dev/pkg/utils/log"
	"parley.dev/pkg/utils/lol"
)

// logger adapts the lol levels to badger.Logger.
type logger struct {
	level atomic.Int32
}

func newLogger(level int) (l *logger) {
	l = &logger{}
	l.level.Store(int32(level))
	return
}

// SetLevel changes the logger's verbosity.
func (l *logger) SetLevel(level int) { l.level.Store(int32(level)) }

func trim(format string) string { return strings.TrimSpace(format) }

func (l *logger) Errorf(format string, args ...interface{}) {
	if l.level.Load() >= int32(lol.Error) {
		log.E.F(trim(format), args...)
	}
}

func (l *logger) Warningf(format string, args ...interface{}) {
	if l.level.Load() >= int32(lol.Warn) {
		log.W.F(trim(format), args...)
	}
}

func (l *logger) Infof(format string, args ...interface{}) {
	if l.level.Load() >= int32(lol.Info) {
		log.I.F(trim(format), args...)
	}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	if l.level.Load() >= int32(lol.Debug) {
		log.D.F(trim(format), args...)
	}
}
