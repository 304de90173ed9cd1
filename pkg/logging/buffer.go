// Package logging sets up the process logger and keeps recent log lines in
// memory for the debug view.
package logging

import (
	"bufio"
	"fmt"

	"github.com/siderolabs/go-circular"
)

// Buffer sizes.
const (
	InitialCapacity = 4096
	MaxCapacity     = 65536
	SafetyGap       = 512
)

// Buffer is an in-memory ring of log output.
type Buffer struct {
	buf *circular.Buffer
}

// NewBuffer creates an empty log ring.
func NewBuffer() (*Buffer, error) {
	buf, err := circular.NewBuffer(
		circular.WithInitialCapacity(InitialCapacity),
		circular.WithMaxCapacity(MaxCapacity),
		circular.WithSafetyGap(SafetyGap),
	)
	if err != nil {
		return nil, fmt.Errorf("error allocating log buffer: %w", err)
	}

	return &Buffer{buf: buf}, nil
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// Lines returns the buffered log lines, oldest first.
func (b *Buffer) Lines() []string {
	r := b.buf.GetReader()
	defer r.Close() //nolint:errcheck

	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines
}
