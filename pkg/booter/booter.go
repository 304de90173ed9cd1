package booter

import "context"

// Booter is an interface that defines how a selected boot entry is handed
// control.
type Booter interface {
	Boot(ctx context.Context, entry *BootEntry) error
	TypeName() string
}
