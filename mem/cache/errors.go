package cache

import "fmt"

// An InvariantViolation is raised with panic when a cache or the hierarchy
// driving it reaches a state that a correct model cannot reach.
type InvariantViolation struct {
	What string
}

func (e InvariantViolation) Error() string {
	return "invariant violation: " + e.What
}

func violate(format string, args ...any) {
	panic(InvariantViolation{What: fmt.Sprintf(format, args...)})
}
