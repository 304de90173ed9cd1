package bootconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ConfigPath is the location of boot.cfg relative to the device root.
const ConfigPath = "/boot/boot.cfg"

// Scanner finds the boot sections of a mounted device.
type Scanner struct {
	Logger *zap.Logger

	// Kernels are tried, in order, when a device has no configuration.
	Kernels []string
}

// ScanBootInfo returns the boot sections found under root. boot.cfg wins
// over grub configs, which win over the default kernels.
func (s *Scanner) ScanBootInfo(root string) ([]Section, error) {
	cfgPath := filepath.Join(root, ConfigPath)

	f, err := os.Open(cfgPath)
	switch {
	case err == nil:
		sections, perr := Parse(f, root)
		f.Close() //nolint:errcheck

		if perr != nil {
			s.Logger.Warn("errors in boot config", zap.String("path", cfgPath), zap.Error(perr))
		}
		if len(sections) > 0 {
			return sections, nil
		}
		if perr != nil {
			return nil, perr
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("error opening %s: %w", cfgPath, err)
	}

	if sections := ScanGrubConfigs(s.Logger, root); len(sections) > 0 {
		return sections, nil
	}

	for _, kernel := range s.Kernels {
		path := filepath.Join(root, kernel)
		// Lstat: an absolute symlink points outside the mount point
		fi, err := os.Lstat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		s.Logger.Debug("found default kernel", zap.String("path", path))
		return []Section{{Kernel: path}}, nil
	}

	return nil, nil
}
