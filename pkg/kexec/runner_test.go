package kexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecRunnerChrootNeedsAbsolutePath(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), []string{"prepare-boot", "--auto"}, t.TempDir())
	require.ErrorIs(t, err, ErrRelativeCommand)
}

func TestExecRunnerEmptyCommand(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), nil, "")
	require.Error(t, err)
}
