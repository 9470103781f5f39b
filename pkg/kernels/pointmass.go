package kernels

import (
	"fmt"
	"math"

	"gravmag/pkg/geometry"
)

// PointFunc evaluates the field of a point source with the given mass at one
// observation point. The first triple is the observation point, the second
// the source. A point coincident with the source yields 0.
type PointFunc func(o1, o2, o3, s1, s2, s3, mass float64) float64

// PointMassFunc returns the Cartesian point-mass kernel for a gravity field.
func PointMassFunc(field Field) (PointFunc, error) {
	var kern func(de, dn, du, d float64) float64
	switch field {
	case Potential:
		kern = func(_, _, _, d float64) float64 { return 1 / d }
	case GEasting:
		kern = func(de, _, _, d float64) float64 { return -de / (d * d * d) }
	case GNorthing:
		kern = func(_, dn, _, d float64) float64 { return -dn / (d * d * d) }
	case GZ:
		kern = func(_, _, du, d float64) float64 { return du / (d * d * d) }
	case GEE:
		kern = func(de, _, _, d float64) float64 { return diagonalTensor(de, d) }
	case GNN:
		kern = func(_, dn, _, d float64) float64 { return diagonalTensor(dn, d) }
	case GZZ:
		kern = func(_, _, du, d float64) float64 { return diagonalTensor(du, d) }
	case GEN:
		kern = func(de, dn, _, d float64) float64 { return mixedTensor(de, dn, d) }
	case GEZ:
		kern = func(de, _, du, d float64) float64 { return -mixedTensor(de, du, d) }
	case GNZ:
		kern = func(_, dn, du, d float64) float64 { return -mixedTensor(dn, du, d) }
	default:
		return nil, fmt.Errorf("point mass %v: %w", field, ErrUnsupportedField)
	}
	return func(e, n, u, se, sn, su, mass float64) float64 {
		de, dn, du := e-se, n-sn, u-su
		d := math.Sqrt(de*de + dn*dn + du*du)
		if d == 0 {
			return 0
		}
		return geometry.GravitationalConstant * mass * kern(de, dn, du, d)
	}, nil
}

// PointMass computes one gravity field of a Cartesian point mass.
func PointMass(field Field, easting, northing, upward, se, sn, su, mass float64) (float64, error) {
	fn, err := PointMassFunc(field)
	if err != nil {
		return 0, err
	}
	return fn(easting, northing, upward, se, sn, su, mass), nil
}

func diagonalTensor(delta, d float64) float64 {
	d2 := d * d
	return (3*delta*delta - d2) / (d2 * d2 * d)
}

func mixedTensor(a, b, d float64) float64 {
	d2 := d * d
	return 3 * a * b / (d2 * d2 * d)
}

// PointMassSphericalFunc returns the point-mass kernel for geocentric
// spherical coordinates (longitude, latitude in degrees, radius in meters).
// Components are taken in the local frame of the observation point; GZ is
// positive towards the center of the sphere.
func PointMassSphericalFunc(field Field) (PointFunc, error) {
	switch field {
	case Potential, GZ, GNorthing, GEasting:
	default:
		return nil, fmt.Errorf("spherical point mass %v: %w", field, ErrUnsupportedField)
	}
	return func(lon, lat, r, slon, slat, sr, mass float64) float64 {
		hav := geometry.Haversine(lon, lat, slon, slat)
		dr := r - sr
		d := math.Sqrt(dr*dr + 4*r*sr*hav)
		if d == 0 {
			return 0
		}
		gm := geometry.GravitationalConstant * mass
		d3 := d * d * d
		switch field {
		case Potential:
			return gm / d
		case GZ:
			// r - sr·cosψ written with the haversine to keep precision
			return gm * (dr + 2*sr*hav) / d3
		case GNorthing:
			phi, phiS := geometry.Radians(lat), geometry.Radians(slat)
			dlon := geometry.Radians(slon - lon)
			return gm * sr * (math.Sin(phiS)*math.Cos(phi) - math.Cos(phiS)*math.Sin(phi)*math.Cos(dlon)) / d3
		default:
			phiS := geometry.Radians(slat)
			dlon := geometry.Radians(slon - lon)
			return gm * sr * math.Cos(phiS) * math.Sin(dlon) / d3
		}
	}, nil
}

// GreensFunction is 1/d between an observation point and a Cartesian point
// source, the unit response used by equivalent sources.
func GreensFunction(e, n, u, se, sn, su float64) float64 {
	d := geometry.Distance(e, n, u, se, sn, su)
	if d == 0 {
		return 0
	}
	return 1 / d
}

// GreensFunctionSpherical is GreensFunction for geocentric spherical coordinates.
func GreensFunctionSpherical(lon, lat, r, slon, slat, sr float64) float64 {
	d := geometry.SphericalDistance(lon, lat, r, slon, slat, sr)
	if d == 0 {
		return 0
	}
	return 1 / d
}

// Dipole computes the magnetic induction (T) of a point dipole with moment
// m (A·m²) located at (se, sn, su).
func Dipole(easting, northing, upward, se, sn, su float64, m geometry.Vector) (be, bn, bu float64) {
	de, dn, du := easting-se, northing-sn, upward-su
	d2 := de*de + dn*dn + du*du
	if d2 == 0 {
		return 0, 0, 0
	}
	d := math.Sqrt(d2)
	d3 := d2 * d
	dot := m.East*de + m.North*dn + m.Up*du
	a := 3 * dot / (d3 * d2)
	be = magneticFactor * (a*de - m.East/d3)
	bn = magneticFactor * (a*dn - m.North/d3)
	bu = magneticFactor * (a*du - m.Up/d3)
	return be, bn, bu
}
