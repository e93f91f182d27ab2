// Package options implements the functional option pattern shared by the
// pool, the codecs, the emulator and the block reader and writer.
package options

// Option configures a value of type T. Constructors accept a list of them
// and apply it to their defaults in order.
type Option[T any] func(T) error

// New creates an option from a setter that can reject its input.
func New[T any](fn func(T) error) Option[T] {
	return fn
}

// NoError creates an option from a setter that always succeeds.
func NoError[T any](fn func(T)) Option[T] {
	return func(target T) error {
		fn(target)
		return nil
	}
}

// Apply applies opts to target in order and stops at the first error.
// Nil options are skipped, so callers can build option lists conditionally.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(target); err != nil {
			return err
		}
	}

	return nil
}
