// Package options implements the generic functional option pattern shared by
// the configurable pdbgen components.
package options

// Option configures a target of type T and may reject invalid settings.
type Option[T any] func(T) error

// Apply applies opts to target in order and stops at the first error.
// Nil options are skipped.
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

// NoError creates an option from a setter that cannot fail.
func NoError[T any](fn func(T)) Option[T] {
	return func(target T) error {
		fn(target)
		return nil
	}
}

// New creates an option from a setter that may reject its input.
func New[T any](fn func(T) error) Option[T] {
	return fn
}
