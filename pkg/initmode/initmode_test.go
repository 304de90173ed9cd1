package initmode

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMounter struct {
	mounts []string
	fail   map[string]bool
}

func (m *fakeMounter) Mount(device, target, fstype string, readOnly bool) error {
	if m.fail[target] {
		return errors.New("permission denied")
	}
	m.mounts = append(m.mounts, fstype+" "+target)
	return nil
}

func (m *fakeMounter) BindMount(string, string) error { return nil }

func (m *fakeMounter) Unmount(string) error { return nil }

func newTestSetup(t *testing.T, devMounted bool) (*Setup, *fakeMounter) {
	mounter := &fakeMounter{fail: map[string]bool{}}

	s := NewSetup(zaptest.NewLogger(t), mounter, true)
	s.PrintkPath = filepath.Join(t.TempDir(), "printk")
	s.IsMounted = func(string) (bool, error) { return devMounted, nil }

	return s, mounter
}

func TestRun(t *testing.T) {
	s, mounter := newTestSetup(t, false)

	require.NoError(t, s.Run())
	require.Equal(t, []string{"proc /proc", "sysfs /sys", "devtmpfs /dev"}, mounter.mounts)

	printk, err := os.ReadFile(s.PrintkPath)
	require.NoError(t, err)
	require.Equal(t, ConsoleLogLevel, string(printk))
}

func TestRunDevAlreadyMounted(t *testing.T) {
	s, mounter := newTestSetup(t, true)

	require.NoError(t, s.Run())
	require.Equal(t, []string{"proc /proc", "sysfs /sys"}, mounter.mounts)
}

func TestRunDevtmpfsFailureIsNotFatal(t *testing.T) {
	s, mounter := newTestSetup(t, false)
	mounter.fail["/dev"] = true

	require.NoError(t, s.Run())
}

func TestRunSysfsFailure(t *testing.T) {
	s, mounter := newTestSetup(t, false)
	mounter.fail["/sys"] = true

	require.Error(t, s.Run())
}
