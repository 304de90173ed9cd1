// Package measure extends the boot artifacts into TPM PCRs before the kernel
// is loaded.
package measure

import (
	"crypto/sha256"
	"io"
	"os"
	"strings"

	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
	"go.uber.org/zap"
)

const (
	// BlobPCR receives kernel, initrd and device tree
	BlobPCR = 7
	// BootConfigPCR receives the loader command line
	BootConfigPCR = 8
)

// TPM measures into a TPM 2.0 device.
type TPM struct {
	Logger *zap.Logger

	Open   func() (io.ReadWriteCloser, error)
	Extend func(rw io.ReadWriter, pcr int, digest []byte) error
}

// New returns a TPM measurer for the device at path.
func New(logger *zap.Logger, path string) *TPM {
	return &TPM{
		Logger: logger,
		Open: func() (io.ReadWriteCloser, error) {
			return tpm2.OpenTPM(path)
		},
		Extend: extendSHA256,
	}
}

func extendSHA256(rw io.ReadWriter, pcr int, digest []byte) error {
	return tpm2.PCRExtend(rw, tpmutil.Handle(pcr), tpm2.AlgSHA256, digest, "")
}

// Measure extends files into BlobPCR and the command line into
// BootConfigPCR. A missing TPM is logged and ignored.
func (t *TPM) Measure(files []string, cmdline []string) {
	rw, err := t.Open()
	if err != nil {
		t.Logger.Warn("cannot open TPM", zap.Error(err))
		return
	}
	defer rw.Close() //nolint:errcheck

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			t.Logger.Warn("cannot read file to measure", zap.String("file", file), zap.Error(err))
			continue
		}
		t.extend(rw, BlobPCR, data, file)
	}

	t.extend(rw, BootConfigPCR, []byte(strings.Join(cmdline, " ")), "command line")
}

func (t *TPM) extend(rw io.ReadWriter, pcr int, data []byte, info string) {
	digest := sha256.Sum256(data)

	if err := t.Extend(rw, pcr, digest[:]); err != nil {
		t.Logger.Warn("cannot extend PCR", zap.Int("pcr", pcr), zap.String("what", info), zap.Error(err))
		return
	}

	t.Logger.Info("measured", zap.Int("pcr", pcr), zap.String("what", info))
}
