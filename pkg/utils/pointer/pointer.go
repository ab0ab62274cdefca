package pointer

// Ref returns a pointer to a copy of t.
//
// It helps to fill optional fields with literals, like `ModelVersion: pointer.Ref(2)`.
func Ref[T any](t T) *T {
	return &t
}
