package cmp

type BiPredicator[V any, U any] func(a V, b U) bool

// check two values are equal with ==
func EqEq[T comparable](a, b T) bool {
	return a == b
}

// check two slices have same elements in same order.
func SliceEq[T comparable](a []T, b []T) bool {
	return SliceEqWith(a, b, EqEq[T])
}

// check two slices have equivalent elements in same order.
func SliceEqWith[T any, U any](a []T, b []U, pred BiPredicator[T, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// check 2 slices has same content but its ordering.
//
// In other words, this function answers equality of two bags (or multi-sets).
//
// example:
//
//	SliceContentEq([]string{"a", "b", "c"}, []string{"c", "b", "a"})       // ==> true
//	SliceContentEq([]string{"a", "b", "c", "c"}, []string{"a", "b", "c"})  // ==> false
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, EqEq[T])
}

// check 2 slice has equivarent content but its ordering.
func SliceContentEqWith[S, T any](a []S, b []T, equiv BiPredicator[S, T]) bool {
	if len(a) != len(b) {
		return false
	}

	rest := make(map[int]*T, len(b))
	for i := range b {
		rest[i] = &b[i]
	}

NEXT_A:
	for _, va := range a {
		for k, vb := range rest {
			if equiv(va, *vb) {
				delete(rest, k)
				continue NEXT_A
			}
		}
		return false
	}

	return len(rest) == 0
}
