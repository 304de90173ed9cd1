package devscan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const partitions = `major minor  #blocks  name

   1        0       4096 ram0
   7        0      65536 loop0
 179        0    7761920 mmcblk0
 179        1      65536 mmcblk0p1
 179        2    7695360 mmcblk0p2
   8        1    1048576 sda1
  31        0       4096 mtdblock0
`

const mtd = `dev:    size   erasesize  name
mtd0: 00040000 00020000 "bootloader"
mtd1: 00400000 00020000 "rootfs"
mtd2: 04000000 00020000 "ubi"
`

func newTestEnumerator(t *testing.T) *ProcEnumerator {
	dir := t.TempDir()
	devDir := filepath.Join(dir, "dev")
	require.NoError(t, os.MkdirAll(devDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "partitions"), []byte(partitions), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mtd"), []byte(mtd), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "mtd0"), []byte{0xff, 0xff, 0xff, 0xff}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "mtd1"), []byte{0x85, 0x19, 0x03, 0x20}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "mtd2"), []byte("UBI#\x01\x00"), 0o644))

	fstypes := map[string]string{
		"mmcblk0p1": "vfat",
		"mmcblk0p2": "ext4",
		"sda1":      "ntfs",
	}

	return &ProcEnumerator{
		Logger:         zaptest.NewLogger(t),
		PartitionsPath: filepath.Join(dir, "partitions"),
		MTDPath:        filepath.Join(dir, "mtd"),
		DevDir:         devDir,
		Filesystems:    []string{"vfat", "ext4", "jffs2", "ubifs"},
		Probe: func(path string) (string, error) {
			fstype, ok := fstypes[filepath.Base(path)]
			if !ok {
				return "", errors.New("no filesystem")
			}
			return fstype, nil
		},
	}
}

func TestEnumerate(t *testing.T) {
	e := newTestEnumerator(t)

	devices, err := e.Enumerate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Device{
		{Path: filepath.Join(e.DevDir, "mmcblk0p1"), FSType: "vfat", Blocks: 65536, Class: ClassMMC},
		{Path: filepath.Join(e.DevDir, "mmcblk0p2"), FSType: "ext4", Blocks: 7695360, Class: ClassMMC},
		{Path: filepath.Join(e.DevDir, "mtdblock1"), FSType: "jffs2", Blocks: 4096, Class: ClassMTD},
		{Path: filepath.Join(e.DevDir, "mtd2"), FSType: "ubi", Blocks: 65536, Class: ClassMTD},
	}, devices)
}

func TestEnumerateWithoutUBIFS(t *testing.T) {
	e := newTestEnumerator(t)
	e.Filesystems = []string{"ext4"}

	devices, err := e.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "ext4", devices[0].FSType)
}

func TestEnumerateNoMTD(t *testing.T) {
	e := newTestEnumerator(t)
	e.MTDPath = filepath.Join(t.TempDir(), "missing")

	devices, err := e.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
}

func TestEnumerateNoPartitions(t *testing.T) {
	e := newTestEnumerator(t)
	e.PartitionsPath = filepath.Join(t.TempDir(), "missing")

	_, err := e.Enumerate(context.Background())
	require.Error(t, err)
}

func TestClassOf(t *testing.T) {
	require.Equal(t, ClassMMC, ClassOf("/dev/mmcblk0p1"))
	require.Equal(t, ClassMTD, ClassOf("/dev/mtdblock3"))
	require.Equal(t, ClassStorage, ClassOf("/dev/sda1"))
	require.Equal(t, ClassStorage, ClassOf("/dev/nvme0n1p1"))
	require.Equal(t, ClassUnknown, ClassOf("/dev/dm-0"))
	require.Equal(t, "mmc", ClassMMC.String())
}
