package devscan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/go-blockdevice/v2/blkid"
	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/ubi"
)

// ProbeFunc guesses the filesystem held by a block device.
type ProbeFunc func(path string) (string, error)

// ProcEnumerator lists block partitions from /proc/partitions and flash
// partitions from /proc/mtd.
type ProcEnumerator struct {
	Logger *zap.Logger

	PartitionsPath string
	MTDPath        string
	DevDir         string

	// Filesystems the kernel can mount, nil accepts everything.
	Filesystems []string

	Probe ProbeFunc
}

// NewProcEnumerator returns an enumerator over the standard kernel paths.
func NewProcEnumerator(logger *zap.Logger, filesystems []string) *ProcEnumerator {
	return &ProcEnumerator{
		Logger:         logger,
		PartitionsPath: "/proc/partitions",
		MTDPath:        "/proc/mtd",
		DevDir:         "/dev",
		Filesystems:    filesystems,
		Probe: func(path string) (string, error) {
			info, err := blkid.ProbePath(path, blkid.WithProbeLogger(logger.With(zap.String("device", path))))
			if err != nil {
				return "", err
			}
			return info.ProbeResult.Name, nil
		},
	}
}

var skippedPrefixes = []string{"ram", "loop", "zram", "mtdblock"}

// Enumerate implements Enumerator.
func (e *ProcEnumerator) Enumerate(ctx context.Context) ([]Device, error) {
	devices, err := e.blockDevices(ctx)
	if err != nil {
		return nil, err
	}

	flash, err := e.flashDevices(ctx)
	if err != nil {
		return nil, err
	}

	return append(devices, flash...), nil
}

func (e *ProcEnumerator) blockDevices(ctx context.Context) ([]Device, error) {
	f, err := os.Open(e.PartitionsPath)
	if err != nil {
		return nil, fmt.Errorf("can't read partitions: %w", err)
	}
	defer f.Close()

	var devices []Device

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// major minor #blocks name
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 {
			continue
		}
		blocks, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			continue
		}
		name := fields[3]
		if slices.ContainsFunc(skippedPrefixes, func(p string) bool { return strings.HasPrefix(name, p) }) {
			continue
		}

		path := filepath.Join(e.DevDir, name)
		fstype, err := e.Probe(path)
		if err != nil {
			e.Logger.Debug("can't probe device", zap.String("device", path), zap.Error(err))
			continue
		}
		if !e.supported(fstype) {
			continue
		}

		e.Logger.Info("found device",
			zap.String("device", path),
			zap.String("fstype", fstype),
			zap.String("size", humanize.IBytes(blocks*1024)),
		)

		devices = append(devices, Device{Path: path, FSType: fstype, Blocks: blocks, Class: ClassOf(path)})
	}

	return devices, scanner.Err()
}

var (
	ubiMagic     = []byte("UBI#")
	jffs2MagicLE = []byte{0x85, 0x19}
	jffs2MagicBE = []byte{0x19, 0x85}
)

func (e *ProcEnumerator) flashDevices(ctx context.Context) ([]Device, error) {
	f, err := os.Open(e.MTDPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read mtd partitions: %w", err)
	}
	defer f.Close()

	var devices []Device

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// mtd0: 00040000 00020000 "bootloader"
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.HasPrefix(fields[0], "mtd") {
			continue
		}
		name := strings.TrimSuffix(fields[0], ":")
		size, err := strconv.ParseUint(fields[1], 16, 64)
		if err != nil {
			continue
		}

		magic, err := readMagic(filepath.Join(e.DevDir, name))
		if err != nil {
			e.Logger.Debug("can't read flash partition", zap.String("device", name), zap.Error(err))
			continue
		}

		var dev Device
		switch {
		case bytes.HasPrefix(magic, ubiMagic):
			dev = Device{Path: filepath.Join(e.DevDir, name), FSType: ubi.FSType}
			if !e.supported(ubi.VolumeFSType) {
				continue
			}
		case bytes.HasPrefix(magic, jffs2MagicLE), bytes.HasPrefix(magic, jffs2MagicBE):
			dev = Device{Path: filepath.Join(e.DevDir, "mtdblock"+strings.TrimPrefix(name, "mtd")), FSType: "jffs2"}
			if !e.supported(dev.FSType) {
				continue
			}
		default:
			continue
		}
		dev.Blocks = size / 1024
		dev.Class = ClassMTD

		e.Logger.Info("found flash partition",
			zap.String("device", dev.Path),
			zap.String("fstype", dev.FSType),
			zap.String("size", humanize.IBytes(size)),
		)

		devices = append(devices, dev)
	}

	return devices, scanner.Err()
}

func (e *ProcEnumerator) supported(fstype string) bool {
	if fstype == "" {
		return false
	}
	return e.Filesystems == nil || slices.Contains(e.Filesystems, fstype)
}

func readMagic(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, 4)
	n, err := io.ReadFull(f, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return magic[:n], nil
}
