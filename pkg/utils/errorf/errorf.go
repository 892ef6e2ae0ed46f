// Package errorf constructs formatted errors, logging them at the named level
// as they are created so the origin location is recorded.
package errorf

import (
	"fmt"

	"parley.dev/pkg/utils/log"
)

// E makes a formatted error and logs it at error level.
func E(format string, a ...any) (err error) {
	err = fmt.Errorf(format, a...)
	log.E.Ln(err)
	return
}

// W makes a formatted error and logs it at warn level.
func W(format string, a ...any) (err error) {
	err = fmt.Errorf(format, a...)
	log.W.Ln(err)
	return
}

// D makes a formatted error and logs it at debug level.
func D(format string, a ...any) (err error) {
	err = fmt.Errorf(format, a...)
	log.D.Ln(err)
	return
}

// T makes a formatted error and logs it at trace level.
func T(format string, a ...any) (err error) {
	err = fmt.Errorf(format, a...)
	log.T.Ln(err)
	return
}
