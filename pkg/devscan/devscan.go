// Package devscan lists the storage devices that may hold bootable images.
package devscan

import (
	"context"
	"strings"
)

// Class is the kind of storage a device lives on.
type Class int

// Device classes.
const (
	ClassUnknown Class = iota
	ClassStorage
	ClassMMC
	ClassMTD
)

func (c Class) String() string {
	switch c {
	case ClassStorage:
		return "storage"
	case ClassMMC:
		return "mmc"
	case ClassMTD:
		return "mtd"
	default:
		return "unknown"
	}
}

// ClassOf guesses the device class from the device path.
func ClassOf(device string) Class {
	name := device[strings.LastIndex(device, "/")+1:]
	switch {
	case strings.HasPrefix(name, "mmcblk"):
		return ClassMMC
	case strings.HasPrefix(name, "mtd"):
		return ClassMTD
	case strings.HasPrefix(name, "sd"), strings.HasPrefix(name, "hd"),
		strings.HasPrefix(name, "vd"), strings.HasPrefix(name, "nvme"):
		return ClassStorage
	default:
		return ClassUnknown
	}
}

// Device is a raw storage device with a guessed filesystem.
type Device struct {
	Path   string
	FSType string
	// Blocks is the size in 1 KiB blocks.
	Blocks uint64
	Class  Class
}

// Enumerator returns the devices to probe, in probe order.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]Device, error)
}
