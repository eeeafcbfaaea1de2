package cache

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// WritePolicy selects how writes are handled across the hierarchy.
type WritePolicy int

const (
	// WriteBackAllocate keeps written data in the cache and allocates a line
	// on a write miss. Modified data reaches the next level on eviction.
	WriteBackAllocate WritePolicy = iota

	// WriteThroughNoAllocate forwards every write to the next level and never
	// allocates a line on a write miss.
	WriteThroughNoAllocate
)

func (p WritePolicy) String() string {
	switch p {
	case WriteBackAllocate:
		return "write-back"
	case WriteThroughNoAllocate:
		return "write-through"
	default:
		return fmt.Sprintf("WritePolicy(%d)", int(p))
	}
}

// ParseWritePolicy accepts "write-back", "write-through", and the numeric
// forms "0" and "1".
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "write-back", "writeback", "wb", "0":
		return WriteBackAllocate, nil
	case "write-through", "writethrough", "wt", "1":
		return WriteThroughNoAllocate, nil
	default:
		return 0, fmt.Errorf("unknown write policy %q", s)
	}
}

// UnmarshalYAML reads the policy from a YAML scalar.
func (p *WritePolicy) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseWritePolicy(node.Value)
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// MarshalYAML writes the policy as its name.
func (p WritePolicy) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}
