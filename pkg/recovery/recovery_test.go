package recovery

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

func TestPowerManager(t *testing.T) {
	var cmds []int

	p := NewPowerManager(zaptest.NewLogger(t), clock.NewMock(), false)
	p.reboot = func(cmd int) error {
		cmds = append(cmds, cmd)
		return unix.EPERM
	}

	require.ErrorIs(t, p.Reboot(), unix.EPERM)
	require.ErrorIs(t, p.Shutdown(), unix.EPERM)
	require.Equal(t, []int{unix.LINUX_REBOOT_CMD_RESTART, unix.LINUX_REBOOT_CMD_POWER_OFF}, cmds)
}

func TestPowerManagerHostDebug(t *testing.T) {
	clk := clock.NewMock()

	p := NewPowerManager(zaptest.NewLogger(t), clk, true)
	p.reboot = func(int) error {
		t.Fatal("reboot called in host debug mode")
		return nil
	}

	done := make(chan error)
	go func() {
		done <- p.Reboot()
	}()

	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			return
		case <-time.After(10 * time.Millisecond):
			clk.Add(hostDebugDelay)
		}
	}
}

func TestFatalRecoverer(t *testing.T) {
	var (
		steps []string
		code  = -1
	)

	var r Recoverer = &FatalRecoverer{
		Logger:  zaptest.NewLogger(t),
		Clock:   clock.NewMock(),
		Cleanup: []func(){func() { steps = append(steps, "cleanup") }},
		Exit: func(c int) {
			steps = append(steps, "exit")
			code = c
		},
	}

	require.NoError(t, r.Recover("kernel load failed"))
	require.Equal(t, []string{"cleanup", "exit"}, steps)
	require.Equal(t, 1, code)
}
