package ubi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAttacher struct {
	num   int
	err   error
	calls []string
}

func (f *fakeAttacher) Attach(mtdID string) (int, error) {
	f.calls = append(f.calls, mtdID)
	return f.num, f.err
}

func TestPartitionID(t *testing.T) {
	for _, tc := range []struct {
		device string
		id     string
	}{
		{"/dev/mtd5", "5"},
		{"/dev/mtd12", "12"},
		{"/dev/mtd123", "23"},
		{"/dev/mtdblock0", "0"},
	} {
		id, err := PartitionID(tc.device)
		require.NoError(t, err, tc.device)
		require.Equal(t, tc.id, id, tc.device)
	}

	_, err := PartitionID("/dev/mtd")
	require.ErrorIs(t, err, ErrAttach)
}

func TestResolveUBI(t *testing.T) {
	a := &fakeAttacher{num: 2}

	target, err := Resolve(a, "/dev/mtd5", "ubi")
	require.NoError(t, err)
	require.Equal(t, Target{Device: "/dev/ubi2_0", FSType: "ubifs", MTD: "5"}, target)
	require.Equal(t, []string{"5"}, a.calls)
}

func TestResolvePassthrough(t *testing.T) {
	a := &fakeAttacher{}

	target, err := Resolve(a, "/dev/mmcblk0p1", "ext4")
	require.NoError(t, err)
	require.Equal(t, Target{Device: "/dev/mmcblk0p1", FSType: "ext4"}, target)
	require.Empty(t, a.calls)
}

func TestResolveAttachFailure(t *testing.T) {
	a := &fakeAttacher{err: errors.New("no such device")}

	_, err := Resolve(a, "/dev/mtd3", "ubi")
	require.ErrorIs(t, err, ErrAttach)
}

func TestCtrlAttacherReusesAttachedDevice(t *testing.T) {
	sysfs := t.TempDir()
	for dev, mtd := range map[string]string{"ubi0": "2\n", "ubi1": "7\n"} {
		require.NoError(t, os.MkdirAll(filepath.Join(sysfs, dev), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sysfs, dev, "mtd_num"), []byte(mtd), 0o644))
	}
	// volumes have no mtd_num
	require.NoError(t, os.MkdirAll(filepath.Join(sysfs, "ubi1_0"), 0o755))

	a := NewCtrlAttacher(zaptest.NewLogger(t))
	a.SysfsPath = sysfs
	a.CtrlPath = filepath.Join(sysfs, "missing")

	num, err := a.Attach("7")
	require.NoError(t, err)
	require.Equal(t, 1, num)

	_, err = a.Attach("x")
	require.Error(t, err)
}
