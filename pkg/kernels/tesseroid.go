package kernels

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"gravmag/pkg/geometry"
)

// DefaultMaxDepth bounds the number of times a tesseroid is halved during
// adaptive discretization.
const DefaultMaxDepth = 12

// DefaultGLQDegrees is the number of Gauss-Legendre nodes used along
// longitude, latitude and radius.
var DefaultGLQDegrees = [3]int{2, 2, 2}

// DefaultDistanceSizeRatio returns the distance-size ratio below which a
// tesseroid is split for the given field.
func DefaultDistanceSizeRatio(field Field) float64 {
	if field == Potential {
		return 1
	}
	return 2.5
}

// TesseroidOptions controls the quadrature and the adaptive discretization.
// Zero values select the defaults.
type TesseroidOptions struct {
	GLQDegrees           [3]int
	DistanceSizeRatio    float64
	MaxDepth             int
	RadialDiscretization bool
}

// ConvergenceWarning reports a tesseroid whose discretization reached the
// maximum depth for a given observation point. The value returned for it is
// the quadrature on the deepest cells reached.
type ConvergenceWarning struct {
	Tesseroid int
	Point     int
	Depth     int
}

func (w ConvergenceWarning) String() string {
	return fmt.Sprintf("tesseroid %d did not converge for point %d after %d subdivisions", w.Tesseroid, w.Point, w.Depth)
}

type glq struct {
	nodes   []float64
	weights []float64
}

func newGLQ(degree int) glq {
	g := glq{nodes: make([]float64, degree), weights: make([]float64, degree)}
	quad.Legendre{}.FixedLocations(g.nodes, g.weights, -1, 1)
	return g
}

// TesseroidKernel integrates the field of constant-density tesseroids with
// Gauss-Legendre quadrature. It is read-only once built and safe for
// concurrent use.
type TesseroidKernel struct {
	field    Field
	ratio    float64
	maxDepth int
	radial   bool
	lon      glq
	lat      glq
	rad      glq
}

// NewTesseroidKernel builds a kernel for the potential or g_z.
func NewTesseroidKernel(field Field, opts TesseroidOptions) (*TesseroidKernel, error) {
	if field != Potential && field != GZ {
		return nil, fmt.Errorf("tesseroid %v: %w", field, ErrUnsupportedField)
	}
	degrees := opts.GLQDegrees
	if degrees == ([3]int{}) {
		degrees = DefaultGLQDegrees
	}
	for _, d := range degrees {
		if d < 1 {
			return nil, fmt.Errorf("invalid GLQ degrees %v", degrees)
		}
	}
	k := &TesseroidKernel{
		field:    field,
		ratio:    opts.DistanceSizeRatio,
		maxDepth: opts.MaxDepth,
		radial:   opts.RadialDiscretization,
		lon:      newGLQ(degrees[0]),
		lat:      newGLQ(degrees[1]),
		rad:      newGLQ(degrees[2]),
	}
	if k.ratio <= 0 {
		k.ratio = DefaultDistanceSizeRatio(field)
	}
	if k.maxDepth <= 0 {
		k.maxDepth = DefaultMaxDepth
	}
	return k, nil
}

// Field returns the field computed by the kernel.
func (k *TesseroidKernel) Field() Field { return k.field }

// MaxDepth returns the subdivision cap in use.
func (k *TesseroidKernel) MaxDepth() int { return k.maxDepth }

type cell struct {
	t     geometry.Tesseroid
	depth int
}

// Evaluate returns the field (SI) of one tesseroid at one point. converged is
// false when some cell still needed splitting at the maximum depth.
// Points inside the tesseroid fail with geometry.ErrSingularKernel.
func (k *TesseroidKernel) Evaluate(lon, lat, r float64, t geometry.Tesseroid, density float64) (value float64, converged bool, err error) {
	if t.Contains(lon, lat, r) {
		return 0, false, fmt.Errorf("point (%g, %g, %g) inside tesseroid %v: %w", lon, lat, r, t, geometry.ErrSingularKernel)
	}
	if density == 0 {
		return 0, true, nil
	}

	converged = true
	stack := make([]cell, 1, 7*k.maxDepth+1)
	stack[0] = cell{t: t}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		splitLon, splitLat, splitRad := k.needsSplit(lon, lat, r, c.t)
		if !splitLon && !splitLat && !splitRad {
			value += k.integrate(lon, lat, r, c.t)
			continue
		}
		if c.depth >= k.maxDepth {
			converged = false
			value += k.integrate(lon, lat, r, c.t)
			continue
		}
		stack = appendSplit(stack, c, splitLon, splitLat, splitRad)
	}
	return geometry.GravitationalConstant * density * value, converged, nil
}

func (k *TesseroidKernel) needsSplit(lon, lat, r float64, t geometry.Tesseroid) (bool, bool, bool) {
	clon, clat, crad := t.Center()
	distance := geometry.SphericalDistance(lon, lat, r, clon, clat, crad)
	lLon, lLat, lRad := t.Dimensions()
	splitLon := lLon > 0 && distance/lLon < k.ratio
	splitLat := lLat > 0 && distance/lLat < k.ratio
	splitRad := k.radial && lRad > 0 && distance/lRad < k.ratio
	return splitLon, splitLat, splitRad
}

// appendSplit pushes the halves of c along every flagged dimension.
func appendSplit(stack []cell, c cell, splitLon, splitLat, splitRad bool) []cell {
	t := c.t
	lons := [][2]float64{{t.West, t.East}}
	if splitLon {
		mid := (t.West + t.East) / 2
		lons = [][2]float64{{t.West, mid}, {mid, t.East}}
	}
	lats := [][2]float64{{t.South, t.North}}
	if splitLat {
		mid := (t.South + t.North) / 2
		lats = [][2]float64{{t.South, mid}, {mid, t.North}}
	}
	rads := [][2]float64{{t.Bottom, t.Top}}
	if splitRad {
		mid := (t.Bottom + t.Top) / 2
		rads = [][2]float64{{t.Bottom, mid}, {mid, t.Top}}
	}
	for _, lo := range lons {
		for _, la := range lats {
			for _, ra := range rads {
				stack = append(stack, cell{
					t:     geometry.Tesseroid{West: lo[0], East: lo[1], South: la[0], North: la[1], Bottom: ra[0], Top: ra[1]},
					depth: c.depth + 1,
				})
			}
		}
	}
	return stack
}

// integrate applies the GLQ rule on a single cell, without the G·density
// factor.
func (k *TesseroidKernel) integrate(lon, lat, r float64, t geometry.Tesseroid) float64 {
	dlon := t.East - t.West
	dlat := t.North - t.South
	drad := t.Top - t.Bottom

	var sum float64
	for i, xl := range k.lon.nodes {
		lonP := t.West + (xl+1)*dlon/2
		for j, xp := range k.lat.nodes {
			latP := t.South + (xp+1)*dlat/2
			cosLatP := math.Cos(geometry.Radians(latP))
			hav := geometry.Haversine(lon, lat, lonP, latP)
			wij := k.lon.weights[i] * k.lat.weights[j]
			for m, xr := range k.rad.nodes {
				rP := t.Bottom + (xr+1)*drad/2
				dr := r - rP
				d := math.Sqrt(dr*dr + 4*r*rP*hav)
				if d == 0 {
					continue
				}
				kappa := rP * rP * cosLatP
				var kern float64
				if k.field == Potential {
					kern = 1 / d
				} else {
					kern = (dr + 2*rP*hav) / (d * d * d)
				}
				sum += wij * k.rad.weights[m] * kappa * kern
			}
		}
	}
	return sum * drad * geometry.Radians(dlon) * geometry.Radians(dlat) / 8
}
