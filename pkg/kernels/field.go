// Package kernels holds the closed-form field kernels of the source
// primitives: rectangular prisms, point masses, dipoles and tesseroids.
//
// Every kernel is a pure function of one source and one observation point and
// returns SI units. Unit conversion and summation over many sources belong to
// package forward.
package kernels

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedField is returned when a kernel is asked for a field it does
// not implement.
var ErrUnsupportedField = errors.New("kernels: unsupported field")

// Field selects the component computed by a kernel.
type Field int

const (
	Potential Field = iota
	GEasting
	GNorthing
	GZ // downward
	GEE
	GNN
	GZZ
	GEN
	GEZ
	GNZ
	BEasting
	BNorthing
	BUpward
)

var fieldNames = map[Field]string{
	Potential: "potential",
	GEasting:  "g_e",
	GNorthing: "g_n",
	GZ:        "g_z",
	GEE:       "g_ee",
	GNN:       "g_nn",
	GZZ:       "g_zz",
	GEN:       "g_en",
	GEZ:       "g_ez",
	GNZ:       "g_nz",
	BEasting:  "b_e",
	BNorthing: "b_n",
	BUpward:   "b_u",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// ParseField accepts the usual short names (g_z, g_ee, b_u, ...).
// A few aliases such as "gz" and "g_up" are accepted too.
func ParseField(s string) (Field, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "gz", "g_d", "g_down":
		return GZ, nil
	case "ge", "g_easting":
		return GEasting, nil
	case "gn", "g_northing":
		return GNorthing, nil
	case "be", "b_easting":
		return BEasting, nil
	case "bn", "b_northing":
		return BNorthing, nil
	case "bu", "b_up", "b_upward":
		return BUpward, nil
	}
	for f, n := range fieldNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedField)
}

// IsGravity reports whether the field is a gravitational quantity.
func (f Field) IsGravity() bool { return f >= Potential && f <= GNZ }

// IsTensor reports whether the field is a gravity gradient component.
func (f Field) IsTensor() bool { return f >= GEE && f <= GNZ }

// IsMagnetic reports whether the field is a magnetic induction component.
func (f Field) IsMagnetic() bool { return f >= BEasting && f <= BUpward }
