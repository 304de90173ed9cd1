package kexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"golang.org/x/sys/unix"
)

// ErrRelativeCommand is returned when a chrooted command is not given by its
// absolute path.
var ErrRelativeCommand = errors.New("command must be an absolute path")

// Runner runs a command to completion and returns its standard output. A
// non-empty root runs the command chrooted there.
type Runner interface {
	Run(ctx context.Context, argv []string, root string) (string, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, argv []string, root string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}

	if root == "" {
		return cmd.RunContext(ctx, argv[0], argv[1:]...)
	}

	// no PATH lookup happens inside the chroot
	if !filepath.IsAbs(argv[0]) {
		return "", fmt.Errorf("%w: %q", ErrRelativeCommand, argv[0])
	}

	var stdout, stderr bytes.Buffer

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Env = []string{}
	c.Dir = "/"
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.SysProcAttr = &syscall.SysProcAttr{Chroot: root}

	if err := c.Run(); err != nil {
		return stdout.String(), fmt.Errorf("error running %s in %s: %w: %s", argv[0], root, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// Replacer replaces the running process image.
type Replacer func(argv0 string, argv []string, envv []string) error

// ExecReplacer replaces the process with execve(2).
func ExecReplacer(argv0 string, argv []string, envv []string) error {
	return unix.Exec(argv0, argv, envv)
}
