package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/siderolabs/go-procfs/procfs"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, "/mnt", c.MountPoint)
	require.Equal(t, DefaultLoader, c.Profile.Loader)
	require.Equal(t, DefaultKernels, c.Profile.Kernels)
	require.True(t, c.Profile.NumKeys)
	require.Zero(t, c.Timeout)
}

func TestDecodeProfileNumKeys(t *testing.T) {
	c := Default()
	require.NoError(t, c.DecodeProfile(strings.NewReader("numkeys: false\n")))
	require.False(t, c.Profile.NumKeys)
}

func TestDecodeProfile(t *testing.T) {
	c := Default()
	err := c.DecodeProfile(strings.NewReader(`
loader: /sbin/kexec
mem_min: 0x10000000
mem_max: 0x20000000
hardboot: true
atags: true
load_syscall: file
ubi_vid_hdr_offset: "2048"
kernels:
  - /boot/Image
delay: 2s
timeout: 10s
`))
	require.NoError(t, err)
	require.Equal(t, "/sbin/kexec", c.Profile.Loader)
	require.EqualValues(t, 0x10000000, c.Profile.MemMin)
	require.EqualValues(t, 0x20000000, c.Profile.MemMax)
	require.True(t, c.Profile.Hardboot)
	require.True(t, c.Profile.ATAGS)
	require.Equal(t, LoadSyscallFile, c.Profile.LoadSyscall)
	require.Equal(t, "2048", c.Profile.UBIVidHdrOffset)
	require.Equal(t, []string{"/boot/Image"}, c.Profile.Kernels)
	require.Equal(t, 2*time.Second, c.Profile.Delay)
	require.Equal(t, 10*time.Second, c.Timeout)
}

func TestDecodeProfileInvalidSyscall(t *testing.T) {
	c := Default()
	require.Error(t, c.DecodeProfile(strings.NewReader("load_syscall: magic\n")))
}

func TestLoadProfileMissing(t *testing.T) {
	c := Default()
	require.NoError(t, c.LoadProfile(filepath.Join(t.TempDir(), "profile.yaml")))
	require.Equal(t, DefaultLoader, c.Profile.Loader)
}

func TestLoadProfileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	c := Default()
	require.NoError(t, c.LoadProfile(path))
	require.Equal(t, DefaultKernels, c.Profile.Kernels)
}

func TestApplyCmdline(t *testing.T) {
	c := Default()
	c.Timeout = 3 * time.Second

	err := c.ApplyCmdline(procfs.NewCmdline("console=ttyS0 mtdparts=nand:1M(boot),-(rootfs) fbcon=rotate:1 kexecboot.tty=/dev/tty1 kexecboot.angle=270 kexecboot.timeout=7"))
	require.NoError(t, err)
	require.Equal(t, "nand:1M(boot),-(rootfs)", c.MTDParts)
	require.Equal(t, "rotate:1", c.FBCon)
	require.Equal(t, "/dev/tty1", c.TTY)
	require.Equal(t, 270, c.Angle)
	require.Equal(t, 7*time.Second, c.Timeout)
}

func TestApplyCmdlineInvalid(t *testing.T) {
	require.Error(t, Default().ApplyCmdline(procfs.NewCmdline("kexecboot.angle=45")))
	require.Error(t, Default().ApplyCmdline(procfs.NewCmdline("kexecboot.timeout=soon")))
}

func TestSetAngle(t *testing.T) {
	c := Default()
	require.NoError(t, c.SetAngle(90))
	require.Equal(t, 90, c.Angle)
	require.Error(t, c.SetAngle(100))
}
