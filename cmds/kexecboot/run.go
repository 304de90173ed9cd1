package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/siderolabs/go-procfs/procfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/joaohf/kexecboot/pkg/bootconfig"
	"github.com/joaohf/kexecboot/pkg/booter"
	"github.com/joaohf/kexecboot/pkg/config"
	"github.com/joaohf/kexecboot/pkg/devscan"
	"github.com/joaohf/kexecboot/pkg/initmode"
	"github.com/joaohf/kexecboot/pkg/kexec"
	"github.com/joaohf/kexecboot/pkg/logging"
	"github.com/joaohf/kexecboot/pkg/measure"
	"github.com/joaohf/kexecboot/pkg/menu"
	"github.com/joaohf/kexecboot/pkg/recovery"
	"github.com/joaohf/kexecboot/pkg/storage"
	"github.com/joaohf/kexecboot/pkg/ubi"
	"github.com/joaohf/kexecboot/pkg/ui/tui"
)

const (
	procCmdlinePath = "/proc/cmdline"
	failureDelay    = 5 * time.Second
	messageWait     = "Waiting for devices..."
)

func newLogger(buf *logging.Buffer, debug bool) *zap.Logger {
	dests := []*logging.Destination{
		logging.NewDestination(buf, zapcore.DebugLevel, logging.WithoutTimestamp()),
	}
	if debug {
		dests = append(dests, logging.NewDestination(os.Stderr, zapcore.DebugLevel))
	}
	return logging.NewLogger(dests...)
}

func readCmdline(path string) (*procfs.Cmdline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return procfs.NewCmdline(strings.TrimSpace(string(b))), nil
}

// loadConfig merges the profile, the kernel command line and the flags set on
// cmd, in that order. The returned config is usable even when err is set.
func loadConfig(cmd *cobra.Command, cmdline *procfs.Cmdline) (*config.Config, error) {
	var result *multierror.Error

	cfg := config.Default()
	cfg.Debug = rootCmdFlags.debug

	if err := cfg.LoadProfile(rootCmdFlags.profile); err != nil {
		result = multierror.Append(result, fmt.Errorf("profile %s: %w", rootCmdFlags.profile, err))
	}

	if cmdline != nil {
		if err := cfg.ApplyCmdline(cmdline); err != nil {
			result = multierror.Append(result, err)
		}
	}

	flags := cmd.Flags()

	if flags.Changed("mount-point") {
		cfg.MountPoint = rootCmdFlags.mountPoint
	}
	if flags.Changed("tty") {
		cfg.TTY = rootCmdFlags.tty
	}
	if flags.Changed("angle") {
		if err := cfg.SetAngle(rootCmdFlags.angle); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if flags.Changed("timeout") {
		if rootCmdFlags.timeout < 0 {
			result = multierror.Append(result, fmt.Errorf("invalid timeout %d", rootCmdFlags.timeout))
		} else {
			cfg.Timeout = time.Duration(rootCmdFlags.timeout) * time.Second
		}
	}
	if flags.Changed("host-debug") {
		cfg.HostDebug = rootCmdFlags.hostDebug
	}

	if cfg.TTY != "" && !filepath.IsAbs(cfg.TTY) {
		cfg.TTY = filepath.Join("/dev", cfg.TTY)
	}

	return cfg, result.ErrorOrNil()
}

// reloadConfig rebuilds cfg once the kernel command line at path became
// readable, keeping flags ahead of it. cfg is returned unchanged when the
// command line still can't be read.
func reloadConfig(cmd *cobra.Command, cfg *config.Config, path string) (*config.Config, error) {
	cmdline, err := readCmdline(path)
	if err != nil {
		return cfg, fmt.Errorf("can't read kernel command line: %w", err)
	}

	fresh, err := loadConfig(cmd, cmdline)
	fresh.InitMode = cfg.InitMode

	return fresh, err
}

func vidHdrOffset(s string) (int32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid UBI VID header offset %q: %w", s, err)
	}
	return int32(v), nil
}

func newSynthesizer(logger *zap.Logger, cfg *config.Config) *kexec.Synthesizer {
	return &kexec.Synthesizer{
		Logger: logger,
		Options: kexec.Options{
			Loader:          cfg.Profile.Loader,
			HostDebug:       cfg.HostDebug,
			MemMin:          cfg.Profile.MemMin,
			MemMax:          cfg.Profile.MemMax,
			Hardboot:        cfg.Profile.Hardboot,
			ATAGS:           cfg.Profile.ATAGS,
			NoDTB:           cfg.Profile.NoDTB,
			NoChecks:        cfg.Profile.NoChecks,
			LoadSyscall:     cfg.Profile.LoadSyscall,
			UBIVidHdrOffset: cfg.Profile.UBIVidHdrOffset,
			MTDParts:        cfg.MTDParts,
			FBCon:           cfg.FBCon,
			MountPoint:      cfg.MountPoint,
		},
	}
}

//nolint:gocyclo
func run(ctx context.Context, cmd *cobra.Command) error {
	logBuf, err := logging.NewBuffer()
	if err != nil {
		return err
	}

	logger := newLogger(logBuf, rootCmdFlags.debug)
	defer logger.Sync() //nolint:errcheck

	clk := clock.New()
	mounter := &storage.SystemMounter{Logger: logger}
	initMode := initmode.IsInit()

	cmdline, err := readCmdline(procCmdlinePath)
	if err != nil && !initMode {
		logger.Warn("can't read kernel command line", zap.Error(err))
	}

	cfg, err := loadConfig(cmd, cmdline)
	if err != nil {
		logger.Warn("configuration errors, continuing", zap.Error(err))
	}
	cfg.InitMode = initMode

	if initMode {
		if err = initmode.NewSetup(logger, mounter, cfg.Profile.Devtmpfs).Run(); err != nil {
			return err
		}

		// /proc was not there yet on the first attempt.
		if cmdline == nil {
			if cfg, err = reloadConfig(cmd, cfg, procCmdlinePath); err != nil {
				logger.Warn("configuration errors after init setup, continuing", zap.Error(err))
			}
		}
	}

	logger.Info("starting",
		zap.Bool("init", cfg.InitMode),
		zap.Bool("host_debug", cfg.HostDebug),
		zap.String("mount_point", cfg.MountPoint),
		zap.Duration("timeout", cfg.Timeout),
	)

	if cfg.Angle != 0 {
		logger.Info("display rotation is ignored by the text front end", zap.Int("angle", cfg.Angle))
	}

	filesystems, err := storage.GetSupportedFilesystems()
	if err != nil {
		logger.Warn("can't read supported filesystems, probing all devices", zap.Error(err))
	}

	attacher := ubi.NewCtrlAttacher(logger)
	if attacher.VIDHdrOffset, err = vidHdrOffset(cfg.Profile.UBIVidHdrOffset); err != nil {
		logger.Warn("ignoring UBI VID header offset", zap.Error(err))
	}

	ui, err := tui.New(logger, cfg.TTY, cfg.Timeout, clk)
	if err != nil {
		return err
	}
	defer ui.Close()

	ui.SetNumKeys(cfg.Profile.NumKeys)

	if cfg.Profile.Delay > 0 {
		ui.ShowMessage(messageWait)
		clk.Sleep(cfg.Profile.Delay)
	}

	builder := &booter.Builder{
		Logger:     logger,
		Enumerator: devscan.NewProcEnumerator(logger, filesystems),
		Mounter:    mounter,
		Attacher:   attacher,
		Scanner: &bootconfig.Scanner{
			Logger:  logger,
			Kernels: cfg.Profile.Kernels,
		},
		MountLookup: storage.GetMountpointByDevice,
		MountPoint:  cfg.MountPoint,
	}

	mctx := &menu.Context{
		Logger:     logger,
		FrontEnd:   ui,
		Discoverer: builder,
		Power:      recovery.NewPowerManager(logger, clk, cfg.HostDebug),
		Log:        logBuf,
		MountPoint: cfg.MountPoint,
		InitMode:   cfg.InitMode,
	}

	ui.ShowMessage(menu.MessageRescan)

	if err = mctx.Scan(ctx); err != nil {
		return err
	}

	entry, err := mctx.Run(ctx, ui)
	if err != nil {
		if errors.Is(err, menu.ErrExit) {
			logger.Info("exiting")
		}
		return err
	}

	kexecBooter := &kexec.Booter{
		Logger:   logger,
		Synth:    newSynthesizer(logger, cfg),
		Mounter:  mounter,
		Attacher: attacher,
		Runner:   kexec.ExecRunner{},
		Replace:  kexec.ExecReplacer,
		BeforeExec: []func(){
			ui.Close,
			func() { logger.Sync() }, //nolint:errcheck
		},
	}

	if cfg.Profile.Measure {
		kexecBooter.Measurer = measure.New(logger, cfg.Profile.TPMPath)
	}

	logger.Info("booting", zap.String("entry", entry.DisplayLabel(cfg.MountPoint)), zap.String("booter", kexecBooter.TypeName()))

	if err = kexecBooter.Boot(ctx, entry); err != nil {
		var recoverer recovery.Recoverer = &recovery.FatalRecoverer{
			Logger: logger,
			Clock:  clk,
			Notify: func(message string) {
				if ui.Closed() {
					fmt.Fprintln(os.Stderr, message)
					return
				}
				ui.ShowMessage(message)
			},
			Delay:   failureDelay,
			Cleanup: []func(){ui.Close},
			Sync:    true,
		}

		return recoverer.Recover(fmt.Sprintf("Boot failed:\n%v", err))
	}

	return nil
}
