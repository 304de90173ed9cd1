// Package bootconfig finds and parses the boot configurations stored on a
// mounted device.
package bootconfig

import (
	"errors"
	"path/filepath"
)

// ErrParse is returned for malformed boot configuration content.
var ErrParse = errors.New("boot config parse error")

// Section is one bootable kernel described by a boot configuration. Paths
// are absolute, rooted at the mount point the configuration was read from.
type Section struct {
	Label         string
	Kernel        string
	Initrd        string
	DTB           string
	Cmdline       string
	CmdlineAppend string
	Exec          string
	Priority      int
	Icon          string
}

// IsValid returns true if a Section names a kernel.
func (s *Section) IsValid() bool {
	return s.Kernel != ""
}

// resolve roots a configuration path at the mount point.
func resolve(root, path string) string {
	if path == "" {
		return ""
	}
	return filepath.Join(root, path)
}
