package booter

import (
	"fmt"
	"strings"

	"github.com/joaohf/kexecboot/pkg/bootconfig"
	"github.com/joaohf/kexecboot/pkg/devscan"
)

// BootEntry is a bootable kernel found on a device.
type BootEntry struct {
	Device string
	FSType string
	Class  devscan.Class
	// Blocks is the device size in 1 KiB blocks.
	Blocks uint64

	Label         string
	Kernel        string
	Initrd        string
	DTB           string
	Cmdline       string
	CmdlineAppend string
	Exec          string
	Priority      int

	Icon []byte

	hooked bool
}

// NewBootEntry creates an entry for a section read from dev.
func NewBootEntry(dev devscan.Device, s bootconfig.Section) *BootEntry {
	return &BootEntry{
		Device:        dev.Path,
		FSType:        dev.FSType,
		Class:         dev.Class,
		Blocks:        dev.Blocks,
		Label:         s.Label,
		Kernel:        s.Kernel,
		Initrd:        s.Initrd,
		DTB:           s.DTB,
		Cmdline:       s.Cmdline,
		CmdlineAppend: s.CmdlineAppend,
		Exec:          s.Exec,
		Priority:      s.Priority,
	}
}

// IsValid returns true if the entry names a kernel.
func (e *BootEntry) IsValid() bool {
	return e.Kernel != ""
}

// DisplayLabel returns the label shown in menus. Entries without a label
// show their kernel path relative to mountPoint.
func (e *BootEntry) DisplayLabel(mountPoint string) string {
	if e.Label != "" {
		return e.Label
	}
	return strings.TrimPrefix(e.Kernel, mountPoint)
}

// Description returns "<device> <fstype> <size>Mb".
func (e *BootEntry) Description() string {
	return fmt.Sprintf("%s %s %dMb", e.Device, e.FSType, e.Blocks/1024)
}

// ApplyHook merges the output of the pre-boot hook. The device tree is
// replaced and the suffix is appended to the existing one. It only takes
// effect once.
func (e *BootEntry) ApplyHook(dtb, cmdlineAppend string) bool {
	if e.hooked {
		return false
	}
	e.hooked = true

	if dtb != "" {
		e.DTB = dtb
	}
	if cmdlineAppend != "" {
		if e.CmdlineAppend != "" {
			e.CmdlineAppend += " " + cmdlineAppend
		} else {
			e.CmdlineAppend = cmdlineAppend
		}
	}
	return true
}
