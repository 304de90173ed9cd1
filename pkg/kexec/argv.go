package kexec

import (
	"errors"
	"fmt"
)

// Argument vector limits.
const (
	MaxLoadArgs = 13
	MaxExecArgs = 3
)

// ErrTooManyArgs is returned when an argument vector overflows its bound.
var ErrTooManyArgs = errors.New("too many arguments")

// argv is an argument vector with a fixed capacity.
type argv struct {
	args  []string
	limit int
}

func newArgv(limit int) *argv {
	return &argv{args: make([]string, 0, limit), limit: limit}
}

func (a *argv) add(arg string) error {
	if len(a.args) >= a.limit {
		return fmt.Errorf("%w: can't add %q, limit is %d", ErrTooManyArgs, arg, a.limit)
	}
	a.args = append(a.args, arg)
	return nil
}

// addIf adds arg when cond holds.
func (a *argv) addIf(cond bool, arg string) error {
	if !cond {
		return nil
	}
	return a.add(arg)
}

func (a *argv) strings() []string {
	return a.args
}
