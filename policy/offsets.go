package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Offsets is the reminder offset set in days before renewal. It is
// processed in order, so it must be strictly descending.
type Offsets []int

// DefaultOffsets returns {7, 5, 2, 1}.
func DefaultOffsets() Offsets { return Offsets{7, 5, 2, 1} }

// Validate checks that o is non-empty, positive and strictly descending.
func (o Offsets) Validate() error {
	if len(o) == 0 {
		return errors.New("policy: offsets must not be empty")
	}
	for i, v := range o {
		if v <= 0 {
			return fmt.Errorf("policy: offset %d must be positive, got %d", i, v)
		}
		if i > 0 && v >= o[i-1] {
			return fmt.Errorf("policy: offsets must be strictly descending, %d follows %d", v, o[i-1])
		}
	}
	return nil
}

// Max returns the largest offset, or 0 when o is empty.
func (o Offsets) Max() int {
	if len(o) == 0 {
		return 0
	}
	return o[0]
}

// Clone returns a copy of o.
func (o Offsets) Clone() Offsets {
	if o == nil {
		return nil
	}
	out := make(Offsets, len(o))
	copy(out, o)
	return out
}

// String renders o as "7,5,2,1".
func (o Offsets) String() string {
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseOffsets parses "7,5,2,1" and validates the result.
func ParseOffsets(s string) (Offsets, error) {
	var out Offsets
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("policy: parse offset %q: %w", part, err)
		}
		out = append(out, v)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
