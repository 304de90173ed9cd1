package ubi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"github.com/pmorjan/kmod"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	ioctlAttach = 0x40186f40
	devNumAuto  = -1
)

// attachRequest mirrors struct ubi_attach_req.
type attachRequest struct {
	UBINum        int32
	MTDNum        int32
	VIDHdrOffset  int32
	MaxBEBPer1024 int16
	DisableFM     int8
	NeedResvPool  int8
	_             [8]byte
}

// CtrlAttacher attaches MTD partitions through the UBI control device.
type CtrlAttacher struct {
	Logger *zap.Logger

	CtrlPath  string
	SysfsPath string

	// VIDHdrOffset is passed to the kernel, zero lets it pick the default.
	VIDHdrOffset int32
}

// NewCtrlAttacher returns an attacher using the standard kernel paths.
func NewCtrlAttacher(logger *zap.Logger) *CtrlAttacher {
	return &CtrlAttacher{
		Logger:    logger,
		CtrlPath:  "/dev/ubi_ctrl",
		SysfsPath: "/sys/class/ubi",
	}
}

// Attach attaches mtdID, reusing the UBI device already bound to it.
func (a *CtrlAttacher) Attach(mtdID string) (int, error) {
	mtd, err := strconv.Atoi(mtdID)
	if err != nil {
		return 0, fmt.Errorf("invalid mtd number %q: %w", mtdID, err)
	}

	if num, ok := a.lookup(mtd); ok {
		return num, nil
	}

	if _, err := os.Stat(a.CtrlPath); errors.Is(err, os.ErrNotExist) {
		a.loadModule()
	}

	f, err := os.OpenFile(a.CtrlPath, os.O_RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	req := attachRequest{
		UBINum:       devNumAuto,
		MTDNum:       int32(mtd),
		VIDHdrOffset: a.VIDHdrOffset,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), ioctlAttach, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		if errno == unix.EEXIST {
			if num, ok := a.lookup(mtd); ok {
				return num, nil
			}
		}
		return 0, errno
	}

	a.Logger.Info("attached ubi device", zap.Int("mtd", mtd), zap.Int32("ubi", req.UBINum))

	return int(req.UBINum), nil
}

// lookup finds the UBI device already attached to mtd.
func (a *CtrlAttacher) lookup(mtd int) (int, bool) {
	matches, err := filepath.Glob(filepath.Join(a.SysfsPath, "ubi*", "mtd_num"))
	if err != nil {
		return 0, false
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(string(data))); err != nil || n != mtd {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(filepath.Dir(path)), "ubi"))
		if err != nil {
			continue
		}
		return num, true
	}

	return 0, false
}

func (a *CtrlAttacher) loadModule() {
	manager, err := kmod.New()
	if err != nil {
		a.Logger.Warn("can't initialize module loader", zap.Error(err))
		return
	}
	if err := manager.Load("ubi", "", 0); err != nil {
		a.Logger.Warn("can't load ubi module", zap.Error(err))
	}
}
