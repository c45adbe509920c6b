// Package motion provides the coordinate value types shared by the toolchanger
// and the motion controller port it drives.
package motion

import (
	"fmt"
	"strings"
)

// Axis identifies one cartesian axis.
type Axis int

// Cartesian axes in index order.
const (
	X Axis = iota
	Y
	Z
)

// String returns the upper-case axis letter.
func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// AllAxes returns X, Y and Z in order.
func AllAxes() []Axis {
	return []Axis{X, Y, Z}
}

// ParseAxes converts a restore-axis string such as "XYZ" or "xz" into axes.
// The empty string yields no axes. Letters keep their order of appearance.
func ParseAxes(s string) ([]Axis, error) {
	axes := make([]Axis, 0, len(s))
	for _, r := range s {
		switch r {
		case 'x', 'X':
			axes = append(axes, X)
		case 'y', 'Y':
			axes = append(axes, Y)
		case 'z', 'Z':
			axes = append(axes, Z)
		default:
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidAxis, r, s)
		}
	}
	return axes, nil
}

// ValidateAxes reports whether s is a valid restore-axis string.
func ValidateAxes(s string) error {
	_, err := ParseAxes(s)
	return err
}

// Position is a full logical X/Y/Z position.
type Position [3]float64

// Get returns the coordinate of axis a.
func (p Position) Get(a Axis) float64 {
	return p[a]
}

// Partial holds up to three optional coordinates. A nil axis means
// "leave this axis alone".
type Partial struct {
	X *float64
	Y *float64
	Z *float64
}

// Float returns a pointer to v, handy for building Partial literals.
func Float(v float64) *float64 {
	return &v
}

// Get returns the coordinate for axis a, or nil when undefined.
func (p Partial) Get(a Axis) *float64 {
	switch a {
	case X:
		return p.X
	case Y:
		return p.Y
	case Z:
		return p.Z
	default:
		return nil
	}
}

// Set defines axis a.
func (p *Partial) Set(a Axis, v float64) {
	switch a {
	case X:
		p.X = Float(v)
	case Y:
		p.Y = Float(v)
	case Z:
		p.Z = Float(v)
	}
}

// IsEmpty reports whether no axis is defined.
func (p Partial) IsEmpty() bool {
	return p.X == nil && p.Y == nil && p.Z == nil
}

// Has reports whether axis a is defined.
func (p Partial) Has(a Axis) bool {
	return p.Get(a) != nil
}

// ValueOrZero returns the coordinate for a, substituting 0 when undefined.
func (p Partial) ValueOrZero(a Axis) float64 {
	if v := p.Get(a); v != nil {
		return *v
	}
	return 0
}

// Select builds a Partial from pos restricted to axes.
func Select(pos Position, axes []Axis) Partial {
	var p Partial
	for _, a := range axes {
		p.Set(a, pos.Get(a))
	}
	return p
}

// String renders defined axes as "X=1.000000 Y=2.000000".
func (p Partial) String() string {
	var parts []string
	for _, a := range AllAxes() {
		if v := p.Get(a); v != nil {
			parts = append(parts, fmt.Sprintf("%s=%f", a, *v))
		}
	}
	return strings.Join(parts, " ")
}

// Zero returns a Partial with all three axes defined as 0.
func Zero() Partial {
	return Partial{X: Float(0), Y: Float(0), Z: Float(0)}
}
