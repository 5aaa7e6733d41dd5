package textutil

// Ternary picks between two values, keeping one-of-two label choices on a
// single line at call sites.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
