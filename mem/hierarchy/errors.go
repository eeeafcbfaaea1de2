package hierarchy

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache"
)

// A ConfigurationError reports a hierarchy configuration that cannot be
// built. Level is -1 for settings shared by all levels.
type ConfigurationError struct {
	Level  int
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Level < 0 {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}

	return fmt.Sprintf("invalid configuration: level %d: %s: %s",
		e.Level, e.Field, e.Reason)
}

func violate(format string, args ...any) {
	panic(cache.InvariantViolation{What: fmt.Sprintf(format, args...)})
}
