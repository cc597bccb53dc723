package mathx

import "golang.org/x/exp/constraints"

// FloorDiv returns floor(a/b). Go's '/' truncates toward zero, which rounds
// negative quotients up; conversions that must never overshoot use this.
// b must be non-zero.
func FloorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
