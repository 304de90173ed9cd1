package recovery

import (
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// hostDebugDelay stands in for a power cycle on a development host.
const hostDebugDelay = time.Second

// PowerManager reboots or powers off the machine.
type PowerManager struct {
	Logger    *zap.Logger
	Clock     clock.Clock
	HostDebug bool

	reboot func(cmd int) error
}

// NewPowerManager returns a PowerManager using reboot(2).
func NewPowerManager(logger *zap.Logger, clk clock.Clock, hostDebug bool) *PowerManager {
	return &PowerManager{
		Logger:    logger,
		Clock:     clk,
		HostDebug: hostDebug,
		reboot:    unix.Reboot,
	}
}

// Reboot restarts the machine.
func (p *PowerManager) Reboot() error {
	return p.powerCycle(unix.LINUX_REBOOT_CMD_RESTART)
}

// Shutdown powers the machine off.
func (p *PowerManager) Shutdown() error {
	return p.powerCycle(unix.LINUX_REBOOT_CMD_POWER_OFF)
}

func (p *PowerManager) powerCycle(cmd int) error {
	if p.HostDebug {
		p.Logger.Info("simulating power cycle")
		p.Clock.Sleep(hostDebugDelay)

		return nil
	}

	syncAll()

	return p.reboot(cmd)
}

// syncAll flushes the standard streams and the filesystems.
func syncAll() {
	for _, f := range []*os.File{
		os.Stdout,
		os.Stderr,
	} {
		f.Sync() //nolint:errcheck
	}
	unix.Sync()
}
