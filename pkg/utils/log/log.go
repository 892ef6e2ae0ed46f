// Package log provides the shared level printers used across the codebase:
// log.T trace, log.D debug, log.I info, log.W warn, log.E error, log.F fatal.
package log

import (
	"parley.dev/pkg/utils/lol"
)

var (
	F = lol.New(lol.Fatal)
	E = lol.New(lol.Error)
	W = lol.New(lol.Warn)
	I = lol.New(lol.Info)
	D = lol.New(lol.Debug)
	T = lol.New(lol.Trace)
)
