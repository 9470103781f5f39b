// Package geometry holds the coordinate systems, source primitives and
// physical constants shared by the forward kernels and the equivalent
// source models.
package geometry

import "math"

// Physical constants in SI units. These are read-only for the lifetime of the
// process.
const (
	// GravitationalConstant is the Newtonian constant of gravitation (CODATA 2018), m³/(kg·s²).
	GravitationalConstant = 6.6743e-11

	// VacuumPermeability is the magnetic permeability of free space, H/m.
	VacuumPermeability = 4 * math.Pi * 1e-7

	// MeanEarthRadius is the radius of the sphere with the same volume as WGS84, m.
	MeanEarthRadius = 6371000.0
)

// Unit conversion factors applied to SI results.
const (
	SI2MGal         = 1e5
	SI2Eotvos       = 1e9
	Tesla2NanoTesla = 1e9
)
