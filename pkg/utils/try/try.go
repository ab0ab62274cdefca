// Package try shortens (value, error) pairs in tests and startup code.
//
//	conn := try.To(es.New(config)).OrFatal(t)
package try

// Fataler is *testing.T, *log.Logger and so on.
type Fataler interface {
	Fatal(...any)
}

// Either is a pair of a value and an error.
type Either[T any] struct {
	value T
	err   error
}

// To wraps the result of a function returning (T, error).
func To[T any](value T, err error) Either[T] {
	return Either[T]{value: value, err: err}
}

// Get returns the pair as it is.
func (e Either[T]) Get() (T, error) {
	return e.value, e.err
}

// OrFatal returns the value, or calls ftl.Fatal with the error.
//
// Helper() of ftl is called first, if it has.
func (e Either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}

// OrDefault returns the value, or def when the pair has an error.
func (e Either[T]) OrDefault(def T) T {
	if e.err != nil {
		return def
	}
	return e.value
}
