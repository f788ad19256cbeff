package fixedpoint

import (
	"fmt"
	"sort"
	"strings"
)

// RangeSet is a protocol revision: the physical span of every channel the
// controller packs. Values are compared by copy and never mutated once
// registered.
type RangeSet struct {
	Name     string `mapstructure:"name"`
	Position Range  `mapstructure:"position"`
	Velocity Range  `mapstructure:"velocity"`
	Kp       Range  `mapstructure:"kp"`
	Kd       Range  `mapstructure:"kd"`
	Torque   Range  `mapstructure:"torque"`
}

var (
	// V1 is the first firmware revision.
	V1 = RangeSet{
		Name:     "v1",
		Position: Range{-95.5, 95.5},
		Velocity: Range{-45, 45},
		Kp:       Range{0, 500},
		Kd:       Range{0, 5},
		Torque:   Range{-18, 18},
	}

	// V2 is the current firmware revision.
	V2 = RangeSet{
		Name:     "v2",
		Position: Range{-12.5, 12.5},
		Velocity: Range{-65, 65},
		Kp:       Range{0, 500},
		Kd:       Range{0, 5},
		Torque:   Range{-40, 40},
	}

	// Default is used when no revision is selected.
	Default = V2
)

var rangeSets = map[string]RangeSet{
	V1.Name: V1,
	V2.Name: V2,
}

// Lookup returns the registered revision called name.
func Lookup(name string) (RangeSet, error) {
	rs, found := rangeSets[strings.ToLower(name)]
	if !found {
		return RangeSet{}, fmt.Errorf("unknown protocol revision %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return rs, nil
}

// Names lists the registered revisions.
func Names() []string {
	var out []string
	for name := range rangeSets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every channel has a usable span.
func (rs RangeSet) Validate() error {
	for _, ch := range []struct {
		name string
		r    Range
	}{
		{"position", rs.Position},
		{"velocity", rs.Velocity},
		{"kp", rs.Kp},
		{"kd", rs.Kd},
		{"torque", rs.Torque},
	} {
		if !ch.r.valid() {
			return fmt.Errorf("range set %q: invalid %s range %s", rs.Name, ch.name, ch.r)
		}
	}
	return nil
}

func (rs RangeSet) String() string {
	return fmt.Sprintf("%s position=%s velocity=%s kp=%s kd=%s torque=%s",
		rs.Name, rs.Position, rs.Velocity, rs.Kp, rs.Kd, rs.Torque)
}
