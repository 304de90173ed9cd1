// Package config holds the boot manager settings. Values come from the boot
// profile, then the kernel command line, then command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/siderolabs/go-procfs/procfs"
	"gopkg.in/yaml.v3"
)

// Well-known paths.
const (
	DefaultProfilePath = "/etc/kexecboot/profile.yaml"
	DefaultMountPoint  = "/mnt"
	DefaultLoader      = "/usr/sbin/kexec"
	DefaultTPMPath     = "/dev/tpm0"
)

// Kernel command line parameters.
const (
	KernelParamMTDParts = "mtdparts"
	KernelParamFBCon    = "fbcon"
	KernelParamTTY      = "kexecboot.tty"
	KernelParamAngle    = "kexecboot.angle"
	KernelParamTimeout  = "kexecboot.timeout"
)

// Loader system calls.
const (
	LoadSyscallFile  = "file"
	LoadSyscallKexec = "kexec"
)

// DefaultKernels are probed when a device has no boot configuration.
var DefaultKernels = []string{"/boot/zImage", "/zImage", "/boot/uImage", "/uImage"}

// Profile describes how kexec is driven on this board.
type Profile struct {
	Loader          string        `yaml:"loader"`
	MemMin          uint32        `yaml:"mem_min"`
	MemMax          uint32        `yaml:"mem_max"`
	Hardboot        bool          `yaml:"hardboot"`
	ATAGS           bool          `yaml:"atags"`
	NoDTB           bool          `yaml:"no_dtb"`
	NoChecks        bool          `yaml:"no_checks"`
	LoadSyscall     string        `yaml:"load_syscall"`
	UBIVidHdrOffset string        `yaml:"ubi_vid_hdr_offset"`
	Kernels         []string      `yaml:"kernels"`
	Devtmpfs        bool          `yaml:"devtmpfs"`
	Delay           time.Duration `yaml:"delay"`
	Timeout         time.Duration `yaml:"timeout"`
	Measure         bool          `yaml:"measure"`
	TPMPath         string        `yaml:"tpm"`
	NumKeys         bool          `yaml:"numkeys"`
}

// Config is the effective boot manager configuration.
type Config struct {
	Profile Profile

	MountPoint string
	TTY        string
	Angle      int
	MTDParts   string
	FBCon      string
	Timeout    time.Duration

	HostDebug bool
	Debug     bool
	InitMode  bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Profile: Profile{
			Loader:  DefaultLoader,
			Kernels: append([]string(nil), DefaultKernels...),
			TPMPath: DefaultTPMPath,
			NumKeys: true,
		},
		MountPoint: DefaultMountPoint,
	}
}

// LoadProfile merges the profile at path. A missing profile is not an error.
func (c *Config) LoadProfile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	return c.DecodeProfile(f)
}

// DecodeProfile merges a YAML profile read from r.
func (c *Config) DecodeProfile(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(&c.Profile); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error decoding profile: %w", err)
	}

	switch c.Profile.LoadSyscall {
	case "", LoadSyscallFile, LoadSyscallKexec:
	default:
		return fmt.Errorf("unknown load_syscall %q", c.Profile.LoadSyscall)
	}

	if c.Profile.Loader == "" {
		c.Profile.Loader = DefaultLoader
	}
	if len(c.Profile.Kernels) == 0 {
		c.Profile.Kernels = append([]string(nil), DefaultKernels...)
	}
	if c.Profile.Timeout > 0 {
		c.Timeout = c.Profile.Timeout
	}

	return nil
}

// ApplyCmdline merges the parameters found on the kernel command line.
func (c *Config) ApplyCmdline(cmdline *procfs.Cmdline) error {
	if v := cmdline.Get(KernelParamMTDParts).First(); v != nil {
		c.MTDParts = *v
	}
	if v := cmdline.Get(KernelParamFBCon).First(); v != nil {
		c.FBCon = *v
	}
	if v := cmdline.Get(KernelParamTTY).First(); v != nil {
		c.TTY = *v
	}
	if v := cmdline.Get(KernelParamAngle).First(); v != nil {
		angle, err := parseAngle(*v)
		if err != nil {
			return err
		}
		c.Angle = angle
	}
	if v := cmdline.Get(KernelParamTimeout).First(); v != nil {
		seconds, err := strconv.Atoi(*v)
		if err != nil || seconds < 0 {
			return fmt.Errorf("invalid %s value %q", KernelParamTimeout, *v)
		}
		c.Timeout = time.Duration(seconds) * time.Second
	}
	return nil
}

// SetAngle validates and sets the display rotation.
func (c *Config) SetAngle(angle int) error {
	a, err := parseAngle(strconv.Itoa(angle))
	if err != nil {
		return err
	}
	c.Angle = a
	return nil
}

func parseAngle(s string) (int, error) {
	angle, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q: %w", s, err)
	}
	switch angle {
	case 0, 90, 180, 270:
		return angle, nil
	default:
		return 0, fmt.Errorf("invalid angle %d", angle)
	}
}
