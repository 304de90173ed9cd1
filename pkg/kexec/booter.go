// Package kexec hands control to a selected kernel through an external kexec
// loader.
package kexec

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/bootconfig"
	"github.com/joaohf/kexecboot/pkg/booter"
	"github.com/joaohf/kexecboot/pkg/storage"
	"github.com/joaohf/kexecboot/pkg/ubi"
)

var (
	// ErrLoad is returned when the kernel can't be loaded.
	ErrLoad = errors.New("kernel load failed")
	// ErrExec is returned when the loaded kernel can't be started.
	ErrExec = errors.New("kernel exec failed")
)

// State is a step of the launch sequence.
type State int

// Launch states.
const (
	StateIdle State = iota
	StateHookMount
	StateHookRun
	StateHookUnmount
	StateLoadMount
	StateLoading
	StateLoadUnmount
	StateExec
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHookMount:
		return "hook mount"
	case StateHookRun:
		return "hook run"
	case StateHookUnmount:
		return "hook unmount"
	case StateLoadMount:
		return "load mount"
	case StateLoading:
		return "loading"
	case StateLoadUnmount:
		return "load unmount"
	case StateExec:
		return "exec"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Measurer records what is about to be booted.
type Measurer interface {
	Measure(files []string, cmdline []string)
}

// Booter boots an entry with kexec. On success Boot does not return, the
// process is replaced by the executor.
type Booter struct {
	Logger *zap.Logger

	Synth    *Synthesizer
	Mounter  storage.Mounter
	Attacher ubi.Attacher
	Runner   Runner
	Replace  Replacer
	Measurer Measurer

	// BeforeExec runs right before the process is replaced.
	BeforeExec []func()

	state State
}

var _ booter.Booter = (*Booter)(nil)

// TypeName implements booter.Booter.
func (b *Booter) TypeName() string {
	return "kexec"
}

// State returns the current launch state.
func (b *Booter) State() State {
	return b.state
}

func (b *Booter) setState(s State) {
	b.Logger.Debug("launch state", zap.Stringer("state", s))
	b.state = s
}

// Boot implements booter.Booter.
func (b *Booter) Boot(ctx context.Context, entry *booter.BootEntry) error {
	b.setState(StateIdle)

	if entry.Exec != "" {
		b.runHook(ctx, entry)
	}

	if err := b.load(ctx, entry); err != nil {
		b.setState(StateFatal)
		return err
	}

	argv, err := b.Synth.ExecArgs()
	if err != nil {
		b.setState(StateFatal)
		return fmt.Errorf("%w: %w", ErrExec, err)
	}

	for _, fn := range b.BeforeExec {
		fn()
	}

	b.setState(StateExec)
	b.Logger.Info("starting kernel", zap.Strings("argv", argv))

	if err := b.Replace(argv[0], argv, []string{}); err != nil {
		b.setState(StateFatal)
		return fmt.Errorf("%w: %w", ErrExec, err)
	}

	return nil
}

// runHook runs the entry's pre-boot hook chrooted on its device and merges
// what it prints. Failures are logged and the boot goes on.
func (b *Booter) runHook(ctx context.Context, entry *booter.BootEntry) {
	mountPoint := b.Synth.MountPoint
	logger := b.Logger.With(zap.String("hook", entry.Exec))

	argv, err := b.Synth.HookArgs(entry)
	if err != nil {
		logger.Warn("can't prepare hook", zap.Error(err))
		return
	}

	b.setState(StateHookMount)

	target, err := ubi.Resolve(b.Attacher, entry.Device, entry.FSType)
	if err != nil {
		logger.Warn("can't resolve hook device", zap.Error(err))
		return
	}

	if err = b.Mounter.Mount(target.Device, mountPoint, target.FSType, true); err != nil {
		logger.Warn("can't mount hook device", zap.Error(err))
		return
	}

	devDir := filepath.Join(mountPoint, "dev")
	bound := false

	defer func() {
		b.setState(StateHookUnmount)

		var errs error
		if bound {
			if err := b.Mounter.Unmount(devDir); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if err := b.Mounter.Unmount(mountPoint); err != nil {
			errs = multierror.Append(errs, err)
		}
		if errs != nil {
			logger.Warn("can't unmount after hook", zap.Error(errs))
		}
	}()

	if err = b.Mounter.BindMount("/dev", devDir); err != nil {
		logger.Warn("can't bind /dev for hook", zap.Error(err))
		return
	}

	bound = true

	b.setState(StateHookRun)

	out, err := b.Runner.Run(ctx, argv, mountPoint)
	if err != nil {
		logger.Warn("hook failed", zap.Error(err))
		return
	}

	section, err := bootconfig.ParseHookOutput(out, mountPoint)
	if err != nil {
		logger.Warn("can't parse hook output", zap.Error(err))
		return
	}

	if entry.ApplyHook(section.DTB, section.CmdlineAppend) {
		logger.Info("hook applied", zap.String("dtb", entry.DTB), zap.String("append", entry.CmdlineAppend))
	}
}

// load mounts the entry's device and runs the loader. The device is
// unmounted on every path.
func (b *Booter) load(ctx context.Context, entry *booter.BootEntry) (err error) {
	mountPoint := b.Synth.MountPoint

	b.setState(StateLoadMount)

	target, err := ubi.Resolve(b.Attacher, entry.Device, entry.FSType)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if err = b.Mounter.Mount(target.Device, mountPoint, target.FSType, true); err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	mounted := true

	defer func() {
		if !mounted {
			return
		}
		if uerr := b.Mounter.Unmount(mountPoint); uerr != nil {
			err = multierror.Append(err, uerr)
		}
	}()

	argv, err := b.Synth.LoadArgs(entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if b.Measurer != nil {
		b.Measurer.Measure(b.files(entry), argv)
	}

	b.setState(StateLoading)
	b.Logger.Info("loading kernel", zap.Strings("argv", argv))

	out, err := b.Runner.Run(ctx, argv, "")
	if out != "" {
		b.Logger.Debug("loader output", zap.String("output", out))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	b.setState(StateLoadUnmount)
	mounted = false

	if err := b.Mounter.Unmount(mountPoint); err != nil {
		b.Logger.Warn("can't unmount after load", zap.Error(err))
	}

	return nil
}

func (b *Booter) files(entry *booter.BootEntry) []string {
	var files []string
	for _, p := range []string{entry.Kernel, entry.Initrd, entry.DTB} {
		if p != "" {
			files = append(files, b.Synth.ResolvePath(p))
		}
	}
	return files
}
