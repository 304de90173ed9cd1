package recovery

// Recoverer offers the ability to recover
// from a boot failure
type Recoverer interface {
	Recover(message string) error
}
