package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/siderolabs/go-retry/retry"
	"github.com/u-root/u-root/pkg/mount"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrMount is returned when a device can't be mounted or unmounted.
var ErrMount = errors.New("mount failed")

// Mounter mounts filesystems at a mount point.
type Mounter interface {
	Mount(device, target, fstype string, readOnly bool) error
	BindMount(source, target string) error
	Unmount(target string) error
}

// SystemMounter is a Mounter backed by mount(2) and umount(2).
type SystemMounter struct {
	Logger *zap.Logger

	// BusyTimeout bounds how long a mount failing with EBUSY is retried.
	BusyTimeout time.Duration
}

const (
	defaultBusyTimeout = 5 * time.Second
	busyRetryInterval  = 100 * time.Millisecond
)

func (m *SystemMounter) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// Mount mounts device at target.
func (m *SystemMounter) Mount(device, target, fstype string, readOnly bool) error {
	var flags uintptr
	if readOnly {
		flags |= unix.MS_RDONLY
	}

	m.logger().Debug("mounting", zap.String("device", device), zap.String("target", target), zap.String("fstype", fstype))

	if err := m.mount(device, target, fstype, flags); err != nil {
		return fmt.Errorf("%w: %s on %s (%s): %w", ErrMount, device, target, fstype, err)
	}
	return nil
}

// BindMount makes source visible at target.
func (m *SystemMounter) BindMount(source, target string) error {
	m.logger().Debug("bind mounting", zap.String("source", source), zap.String("target", target))

	if err := m.mount(source, target, "", unix.MS_BIND); err != nil {
		return fmt.Errorf("%w: bind %s on %s: %w", ErrMount, source, target, err)
	}
	return nil
}

// Unmount detaches the filesystem mounted at target.
func (m *SystemMounter) Unmount(target string) error {
	m.logger().Debug("unmounting", zap.String("target", target))

	if err := mount.Unmount(target, false, false); err != nil {
		return fmt.Errorf("%w: unmount %s: %w", ErrMount, target, err)
	}
	return nil
}

func (m *SystemMounter) mount(source, target, fstype string, flags uintptr) error {
	timeout := m.BusyTimeout
	if timeout == 0 {
		timeout = defaultBusyTimeout
	}

	return retry.Constant(timeout, retry.WithUnits(busyRetryInterval)).Retry(func() error {
		if _, err := mount.Mount(source, target, fstype, "", flags); err != nil {
			if errors.Is(err, unix.EBUSY) {
				return retry.ExpectedError(err)
			}
			return err
		}
		return nil
	})
}
