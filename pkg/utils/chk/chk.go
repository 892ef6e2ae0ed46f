// Package chk provides one-line error check helpers that log the error with
// its location at the named level and report whether it was non-nil.
package chk

import (
	"parley.dev/pkg/utils/log"
)

// E logs a non-nil error at error level. Returns true if err != nil.
var E = log.E.Chk

// W logs a non-nil error at warn level. Returns true if err != nil.
var W = log.W.Chk

// D logs a non-nil error at debug level. Returns true if err != nil.
var D = log.D.Chk

// T logs a non-nil error at trace level. Returns true if err != nil.
var T = log.T.Chk
