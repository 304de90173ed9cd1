// Package ubi attaches raw UBI flash partitions so their first volume can be
// mounted as ubifs.
package ubi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAttach is returned when a flash partition can't be attached.
var ErrAttach = errors.New("ubi attach failed")

const (
	// FSType is the filesystem guess given to raw UBI flash partitions.
	FSType = "ubi"
	// VolumeFSType is the filesystem of an attached UBI volume.
	VolumeFSType = "ubifs"
)

// Attacher attaches an MTD partition and returns the UBI device number.
type Attacher interface {
	Attach(mtdID string) (int, error)
}

// IsUBI reports whether fstype designates raw UBI flash.
func IsUBI(fstype string) bool {
	return strings.HasPrefix(fstype, FSType)
}

// PartitionID returns the MTD partition number held in the one or two
// trailing digits of device.
func PartitionID(device string) (string, error) {
	end := len(device)
	start := end
	for start > 0 && end-start < 2 && isDigit(device[start-1]) {
		start--
	}
	if start == end {
		return "", fmt.Errorf("%w: no partition number in %q", ErrAttach, device)
	}
	return device[start:end], nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Target is the device and filesystem that actually gets mounted for a
// discovered device.
type Target struct {
	Device string
	FSType string
	// MTD is set for UBI devices.
	MTD string
}

// Resolve maps a discovered device to its mount target. UBI devices are
// attached and their first volume is returned, everything else is returned
// unchanged.
func Resolve(a Attacher, device, fstype string) (Target, error) {
	if !IsUBI(fstype) {
		return Target{Device: device, FSType: fstype}, nil
	}

	mtd, err := PartitionID(device)
	if err != nil {
		return Target{}, err
	}

	num, err := a.Attach(mtd)
	if err != nil {
		return Target{}, fmt.Errorf("%w: mtd%s: %w", ErrAttach, mtd, err)
	}

	return Target{
		Device: fmt.Sprintf("/dev/ubi%d_0", num),
		FSType: VolumeFSType,
		MTD:    mtd,
	}, nil
}
