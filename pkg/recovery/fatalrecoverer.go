package recovery

import (
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

var _ Recoverer = (*FatalRecoverer)(nil)

// FatalRecoverer reports a boot failure and terminates the process.
type FatalRecoverer struct {
	Logger *zap.Logger
	Clock  clock.Clock

	// Notify shows the message to the user, who gets Delay to read it.
	Notify func(message string)
	Delay  time.Duration

	// Cleanup runs before the process exits.
	Cleanup []func()
	Sync    bool

	Exit func(code int)
}

// Recover logs message, cleans up and exits with status 1.
func (r *FatalRecoverer) Recover(message string) error {
	r.Logger.Error("boot failed", zap.String("reason", message))

	if r.Notify != nil {
		r.Notify(message)

		if r.Delay > 0 {
			r.Clock.Sleep(r.Delay)
		}
	}

	for _, fn := range r.Cleanup {
		fn()
	}

	if r.Sync {
		syncAll()
	}

	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)

	return nil
}
