package kexec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/booter"
	"github.com/joaohf/kexecboot/pkg/ubi"
)

// HostDebugLoader replaces the loader when running on a development host, so
// the synthesized commands are printed instead of executed.
const HostDebugLoader = "/bin/echo"

// DefaultNetProbePath is checked to decide whether the executor may tear
// down network interfaces.
const DefaultNetProbePath = "/proc/sys/net"

// Load system calls.
const (
	LoadSyscallFile  = "file"
	LoadSyscallKexec = "kexec"
)

// Options configure the kexec command lines.
type Options struct {
	Loader    string
	HostDebug bool

	MemMin   uint32
	MemMax   uint32
	Hardboot bool
	ATAGS    bool
	NoDTB    bool
	NoChecks bool
	// LoadSyscall selects -s or -c, empty leaves the loader default.
	LoadSyscall string

	UBIVidHdrOffset string
	MTDParts        string
	FBCon           string

	MountPoint   string
	NetProbePath string
}

// Synthesizer builds the argument vectors of the hook, loader and executor.
type Synthesizer struct {
	Options

	Logger *zap.Logger
}

func (s *Synthesizer) loader() string {
	if s.HostDebug {
		return HostDebugLoader
	}
	return s.Loader
}

// HookArgs splits the pre-boot hook command of e into words.
func (s *Synthesizer) HookArgs(e *booter.BootEntry) ([]string, error) {
	args, err := shlex.Split(e.Exec)
	if err != nil {
		return nil, fmt.Errorf("can't split hook command %q: %w", e.Exec, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty hook command")
	}
	return args, nil
}

// LoadArgs returns the loader argument vector for e. The device of e must be
// mounted at the mount point, symlinks are read to build file arguments.
func (s *Synthesizer) LoadArgs(e *booter.BootEntry) ([]string, error) {
	cmdline, err := s.CommandLine(e)
	if err != nil {
		return nil, err
	}

	a := newArgv(MaxLoadArgs)

	steps := []func() error{
		func() error { return a.add(s.loader()) },
		func() error { return a.add("-d") },
		func() error { return a.addIf(s.MemMin != 0, fmt.Sprintf("--mem-min=0x%08x", s.MemMin)) },
		func() error { return a.addIf(s.MemMax != 0, fmt.Sprintf("--mem-max=0x%08x", s.MemMax)) },
		func() error {
			if s.Hardboot {
				return a.add("--load-hardboot")
			}
			return a.add("-l")
		},
		func() error { return a.addIf(s.ATAGS, "--atags") },
		func() error { return a.addIf(s.NoDTB, "--no-dtb") },
		func() error { return a.addIf(s.NoChecks, "-i") },
		func() error { return a.addIf(s.LoadSyscall == LoadSyscallFile, "-s") },
		func() error { return a.addIf(s.LoadSyscall == LoadSyscallKexec, "-c") },
		func() error { return a.add("--command-line=" + cmdline) },
		func() error { return a.addIf(e.DTB != "", s.pathArg("--dtb=", e.DTB)) },
		func() error { return a.addIf(e.Initrd != "", s.pathArg("--initrd=", e.Initrd)) },
		func() error { return a.add(s.pathArg("", e.Kernel)) },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return a.strings(), nil
}

// ExecArgs returns the executor argument vector.
func (s *Synthesizer) ExecArgs() ([]string, error) {
	a := newArgv(MaxExecArgs)

	if err := a.add(s.loader()); err != nil {
		return nil, err
	}
	if err := a.add("-e"); err != nil {
		return nil, err
	}
	if err := a.addIf(!s.networkPresent(), "-x"); err != nil {
		return nil, err
	}

	return a.strings(), nil
}

// networkPresent probes for kernel networking. Probe errors other than a
// missing path count as present, so interfaces are still torn down.
func (s *Synthesizer) networkPresent() bool {
	path := s.NetProbePath
	if path == "" {
		path = DefaultNetProbePath
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true
	case errors.Is(err, fs.ErrNotExist):
		return false
	default:
		s.Logger.Warn("can't probe networking", zap.String("path", path), zap.Error(err))
		return true
	}
}

// CommandLine returns the kernel command line for e.
func (s *Synthesizer) CommandLine(e *booter.BootEntry) (string, error) {
	if e.Cmdline != "" {
		return e.Cmdline, nil
	}

	parts := make([]string, 0, 6)

	switch {
	case ubi.IsUBI(e.FSType):
		mtd, err := ubi.PartitionID(e.Device)
		if err != nil {
			return "", err
		}
		root := "root=ubi0_0 ubi.mtd=" + mtd
		if s.UBIVidHdrOffset != "" {
			root += "," + s.UBIVidHdrOffset
		}
		parts = append(parts, root, "rootfstype="+ubi.VolumeFSType)
	case e.FSType != "":
		parts = append(parts, "root="+e.Device, "rootfstype="+e.FSType)
	default:
		parts = append(parts, "root="+e.Device)
	}

	parts = append(parts, "rootwait")

	if s.MTDParts != "" {
		parts = append(parts, "mtdparts="+s.MTDParts)
	}
	if s.FBCon != "" {
		parts = append(parts, "fbcon="+s.FBCon)
	}
	if e.CmdlineAppend != "" {
		parts = append(parts, e.CmdlineAppend)
	}

	return strings.Join(parts, " "), nil
}

// ResolvePath returns the path to pass to the loader for p. Absolute
// symlink targets are rooted at the mount point, everything else is kept.
func (s *Synthesizer) ResolvePath(p string) string {
	target, err := os.Readlink(p)
	if err != nil || !filepath.IsAbs(target) {
		return p
	}
	return s.MountPoint + target
}

func (s *Synthesizer) pathArg(flag, p string) string {
	return flag + s.ResolvePath(p)
}
