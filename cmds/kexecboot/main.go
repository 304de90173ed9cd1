// kexecboot is a boot manager for embedded Linux. It scans local storage for
// kernels, shows them in a menu and boots the selected one with kexec.
//
// It is meant to run as init from an initramfs, but also runs on a
// development host with --host-debug, where it prints the kexec commands
// instead of running them.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/joaohf/kexecboot/pkg/config"
)

var rootCmdFlags struct {
	profile    string
	mountPoint string
	tty        string
	angle      int
	timeout    int
	hostDebug  bool
	debug      bool
}

var rootCmd = &cobra.Command{
	Use:   "kexecboot",
	Short: "Boot a kernel found on local storage with kexec",
	// The kernel passes unknown command line words to init as arguments.
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{
		UnknownFlags: true,
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), cmd)
	},
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVar(&rootCmdFlags.profile, "profile", config.DefaultProfilePath, "boot profile")
	flags.StringVar(&rootCmdFlags.mountPoint, "mount-point", config.DefaultMountPoint, "where devices are mounted while scanning and booting")
	flags.StringVar(&rootCmdFlags.tty, "tty", "", "terminal to draw the menu on (default: controlling terminal)")
	flags.IntVar(&rootCmdFlags.angle, "angle", 0, "display rotation in degrees (0, 90, 180, 270)")
	flags.IntVar(&rootCmdFlags.timeout, "timeout", 0, "seconds before the first entry is booted, 0 waits forever")
	flags.BoolVar(&rootCmdFlags.hostDebug, "host-debug", false, "print kexec commands instead of running them")
	flags.BoolVar(&rootCmdFlags.debug, "debug", false, "log to stderr")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
