package forward

import (
	"fmt"
	"sync/atomic"

	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// PointMasses computes a gravity field of point masses (kg) in Cartesian
// coordinates. A point coinciding with a source receives no contribution from
// it and a warning is logged.
func PointMasses(coords, points geometry.Coordinates, masses []float64, field kernels.Field, opts Options) ([]float64, error) {
	if err := checkPoints(coords, points, len(masses)); err != nil {
		return nil, err
	}
	kernel, err := kernels.PointMassFunc(field)
	if err != nil {
		return nil, err
	}

	var coincident atomic.Int64
	out := opts.run(coords.Len(), points.Len(), 1, func(i, j int, acc []float64) {
		e, n, u := coords.At(i)
		se, sn, su := points.At(j)
		if e == se && n == sn && u == su {
			coincident.Add(1)
			return
		}
		acc[0] += kernel(e, n, u, se, sn, su, masses[j])
	})[0]
	warnCoincident(opts, coincident.Load())

	scaleGravity(field, out)
	return out, nil
}

// PointMassesSpherical is PointMasses for points and sources in geocentric
// spherical coordinates. GZ is radial and positive downwards.
func PointMassesSpherical(coords, points geometry.Spherical, masses []float64, field kernels.Field, opts Options) ([]float64, error) {
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	if err := points.Validate(); err != nil {
		return nil, fmt.Errorf("point masses: %w", err)
	}
	if len(masses) != points.Len() {
		return nil, fmt.Errorf("%d point masses but %d masses: %w", points.Len(), len(masses), geometry.ErrShape)
	}
	kernel, err := kernels.PointMassSphericalFunc(field)
	if err != nil {
		return nil, err
	}

	var coincident atomic.Int64
	out := opts.run(coords.Len(), points.Len(), 1, func(i, j int, acc []float64) {
		lon, lat, r := coords.Longitude[i], coords.Latitude[i], coords.Radius[i]
		slon, slat, sr := points.Longitude[j], points.Latitude[j], points.Radius[j]
		if geometry.SphericalDistance(lon, lat, r, slon, slat, sr) == 0 {
			coincident.Add(1)
			return
		}
		acc[0] += kernel(lon, lat, r, slon, slat, sr, masses[j])
	})[0]
	warnCoincident(opts, coincident.Load())

	scaleGravity(field, out)
	return out, nil
}

// Dipoles computes the magnetic field (nT) of point dipoles with moments in
// A·m².
func Dipoles(coords, dipoles geometry.Coordinates, moments []geometry.Vector, opts Options) (be, bn, bu []float64, err error) {
	if err := checkPoints(coords, dipoles, len(moments)); err != nil {
		return nil, nil, nil, err
	}

	var coincident atomic.Int64
	out := opts.run(coords.Len(), dipoles.Len(), 3, func(i, j int, acc []float64) {
		e, n, u := coords.At(i)
		se, sn, su := dipoles.At(j)
		if e == se && n == sn && u == su {
			coincident.Add(1)
			return
		}
		x, y, z := kernels.Dipole(e, n, u, se, sn, su, moments[j])
		acc[0] += x
		acc[1] += y
		acc[2] += z
	})
	warnCoincident(opts, coincident.Load())

	for _, c := range out {
		scale(c, geometry.Tesla2NanoTesla)
	}
	return out[0], out[1], out[2], nil
}

func checkPoints(coords, sources geometry.Coordinates, nProps int) error {
	if err := coords.Validate(); err != nil {
		return err
	}
	if err := sources.Validate(); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	if nProps != sources.Len() {
		return fmt.Errorf("%d sources but %d physical properties: %w", sources.Len(), nProps, geometry.ErrShape)
	}
	return nil
}

func warnCoincident(opts Options, pairs int64) {
	if pairs > 0 {
		opts.logger().Warn("observation points coincide with point sources, their contribution was set to zero",
			"pairs", pairs)
	}
}
