package booter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/bootconfig"
	"github.com/joaohf/kexecboot/pkg/devscan"
	"github.com/joaohf/kexecboot/pkg/storage"
	"github.com/joaohf/kexecboot/pkg/ubi"
)

var (
	// ErrScan is returned when a device can't be scanned for boot entries.
	ErrScan = errors.New("device scan failed")
	// ErrInUse is returned for a device already mounted elsewhere.
	ErrInUse = errors.New("device already mounted")
)

// BootInfoScanner finds boot sections on a mounted device.
type BootInfoScanner interface {
	ScanBootInfo(root string) ([]bootconfig.Section, error)
}

// IconLoader loads entry icons. Only front ends able to draw icons provide
// one.
type IconLoader interface {
	LoadIcon(path string) ([]byte, error)
}

// Builder turns devices into boot entries. Every device is mounted in turn at
// the same mount point.
type Builder struct {
	Logger *zap.Logger

	Enumerator devscan.Enumerator
	Mounter    storage.Mounter
	Attacher   ubi.Attacher
	Scanner    BootInfoScanner
	Icons      IconLoader

	// MountLookup returns where a device is mounted, nil when it is not.
	// Devices already mounted, such as the running root, are skipped.
	MountLookup func(device string) (*string, error)

	MountPoint string
}

// Build mounts dev, scans it and returns its boot entries. The device is
// always unmounted before Build returns.
func (b *Builder) Build(dev devscan.Device) ([]*BootEntry, error) {
	if b.MountLookup != nil {
		mountPoint, err := b.MountLookup(dev.Path)
		switch {
		case err != nil:
			b.Logger.Warn("can't check mount table", zap.String("device", dev.Path), zap.Error(err))
		case mountPoint != nil:
			return nil, fmt.Errorf("%w: %s: %w at %s", ErrScan, dev.Path, ErrInUse, *mountPoint)
		}
	}

	target, err := ubi.Resolve(b.Attacher, dev.Path, dev.FSType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScan, dev.Path, err)
	}

	if err = b.Mounter.Mount(target.Device, b.MountPoint, target.FSType, true); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScan, dev.Path, err)
	}

	defer func() {
		if err := b.Mounter.Unmount(b.MountPoint); err != nil {
			b.Logger.Warn("can't unmount device", zap.String("device", target.Device), zap.Error(err))
		}
	}()

	sections, err := b.Scanner.ScanBootInfo(b.MountPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScan, dev.Path, err)
	}

	entries := make([]*BootEntry, 0, len(sections))
	for _, s := range sections {
		entry := NewBootEntry(dev, s)

		if b.Icons != nil && s.Icon != "" {
			icon, err := b.Icons.LoadIcon(s.Icon)
			if err != nil {
				b.Logger.Warn("can't load icon", zap.String("path", s.Icon), zap.Error(err))
			} else {
				entry.Icon = icon
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Discover enumerates devices and builds a fresh registry out of their boot
// entries. Devices that can't be scanned are skipped.
func (b *Builder) Discover(ctx context.Context) (*Registry, error) {
	devices, err := b.Enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't initiate device scan: %w", err)
	}

	reg := NewRegistry()

	for _, dev := range devices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := b.Build(dev)
		if err != nil {
			b.Logger.Warn("skipping device", zap.String("device", dev.Path), zap.Error(err))
			continue
		}

		for _, e := range entries {
			b.Logger.Info("found kernel",
				zap.String("device", e.Device),
				zap.String("kernel", e.Kernel),
				zap.Int("priority", e.Priority),
			)
		}

		reg.Add(entries...)
	}

	return reg, nil
}
