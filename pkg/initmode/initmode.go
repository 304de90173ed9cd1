// Package initmode prepares the system when the boot manager runs as the
// init process.
package initmode

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/storage"
)

// ConsoleLogLevel keeps kernel messages off the boot menu.
const ConsoleLogLevel = "0 4 1 7"

// IsInit reports whether the process is the init process.
func IsInit() bool {
	return os.Getpid() == 1
}

type earlyMount struct {
	source, target, fstype string
}

// Setup mounts the kernel filesystems and quiets the console.
type Setup struct {
	Logger  *zap.Logger
	Mounter storage.Mounter

	// Devtmpfs mounts devtmpfs on /dev unless something is there already.
	Devtmpfs bool

	PrintkPath string
	IsMounted  func(target string) (bool, error)
}

// NewSetup returns a Setup for the live system.
func NewSetup(logger *zap.Logger, mounter storage.Mounter, devtmpfs bool) *Setup {
	return &Setup{
		Logger:     logger,
		Mounter:    mounter,
		Devtmpfs:   devtmpfs,
		PrintkPath: "/proc/sys/kernel/printk",
		IsMounted:  storage.IsMounted,
	}
}

// Run performs the early mounts. proc and sysfs are required.
func (s *Setup) Run() error {
	for _, m := range []earlyMount{
		{"proc", "/proc", "proc"},
		{"sysfs", "/sys", "sysfs"},
	} {
		if err := s.Mounter.Mount(m.source, m.target, m.fstype, false); err != nil {
			return fmt.Errorf("can't mount %s: %w", m.target, err)
		}
	}

	if s.Devtmpfs {
		s.mountDev()
	}

	s.quietPrintk()

	return nil
}

func (s *Setup) mountDev() {
	if mounted, err := s.IsMounted("/dev"); err == nil && mounted {
		return
	}
	if err := s.Mounter.Mount("devtmpfs", "/dev", "devtmpfs", false); err != nil {
		s.Logger.Warn("can't mount devtmpfs", zap.Error(err))
	}
}

func (s *Setup) quietPrintk() {
	if err := os.WriteFile(s.PrintkPath, []byte(ConsoleLogLevel), 0o644); err != nil {
		s.Logger.Warn("can't set console log level", zap.Error(err))
	}
}
