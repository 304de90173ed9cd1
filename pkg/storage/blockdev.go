package storage

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LinuxMountsPath is the path to the file holding the mount table.
var LinuxMountsPath = "/proc/mounts"

// LinuxFilesystemsPath is the path to the list of filesystems known to the
// running kernel.
var LinuxFilesystemsPath = "/proc/filesystems"

// Mountpoint is one line of the mount table.
type Mountpoint struct {
	Device string
	Path   string
	FsType string
}

// GetMountpoints returns the entries of the mount table.
func GetMountpoints() ([]Mountpoint, error) {
	fd, err := os.Open(LinuxMountsPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	var mounts []Mountpoint
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, Mountpoint{Device: fields[0], Path: fields[1], FsType: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", LinuxMountsPath, err)
	}
	return mounts, nil
}

// GetMountpointByDevice returns the mount point of device, or nil if the
// device is not mounted.
func GetMountpointByDevice(devicePath string) (*string, error) {
	mounts, err := GetMountpoints()
	if err != nil {
		return nil, err
	}
	for _, m := range mounts {
		if m.Device == devicePath {
			return &m.Path, nil
		}
	}
	return nil, nil
}

// IsMounted reports whether something is mounted at target.
func IsMounted(target string) (bool, error) {
	mounts, err := GetMountpoints()
	if err != nil {
		return false, err
	}
	for _, m := range mounts {
		if m.Path == target {
			return true, nil
		}
	}
	return false, nil
}

// GetSupportedFilesystems returns the filesystems the kernel can mount,
// including the nodev ones.
func GetSupportedFilesystems() ([]string, error) {
	fd, err := os.Open(LinuxFilesystemsPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	var filesystems []string
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// "nodev" marks filesystems without a backing device
		filesystems = append(filesystems, fields[len(fields)-1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", LinuxFilesystemsPath, err)
	}
	return filesystems, nil
}
