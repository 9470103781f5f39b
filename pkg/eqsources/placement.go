package eqsources

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"gravmag/pkg/geometry"
)

// DepthType selects how source depths are derived from the data.
type DepthType int

const (
	// DepthDefault places every source DepthFactor times the mean
	// nearest-neighbour spacing below its datum.
	DepthDefault DepthType = iota
	// DepthRelative places each source DepthFactor times the spacing to its
	// own nearest neighbour below its datum, never less than MinDepth.
	DepthRelative
	// DepthOffset places every source Depth below its datum.
	DepthOffset
	// DepthConstant places every source at upward = -Depth.
	DepthConstant
)

func (d DepthType) String() string {
	switch d {
	case DepthDefault:
		return "default"
	case DepthRelative:
		return "relative"
	case DepthOffset:
		return "offset"
	case DepthConstant:
		return "constant"
	}
	return fmt.Sprintf("DepthType(%d)", int(d))
}

// ParseDepthType parses the names returned by DepthType.String.
func ParseDepthType(s string) (DepthType, error) {
	for _, d := range []DepthType{DepthDefault, DepthRelative, DepthOffset, DepthConstant} {
		if s == d.String() {
			return d, nil
		}
	}
	if s == "" {
		return DepthDefault, nil
	}
	return 0, fmt.Errorf("unknown depth type %q", s)
}

const (
	// DefaultDepthFactor scales the data spacing into a source depth.
	DefaultDepthFactor = 4.5
	// DefaultMinDepth keeps sources off the observation points.
	DefaultMinDepth = 1.0
)

// point is a node of the kd-tree used for neighbour searches.
type point struct {
	X, Y, Z float64
}

// Compare implements kdtree.Comparable.
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

func (p point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// points satisfies kdtree.Interface.
type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{points: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{points: p, Dim: d}, 100))
}

// pointPlane implements kdtree.SortSlicer for points.
type pointPlane struct {
	points
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.points[i].X < p.points[j].X
	case 1:
		return p.points[i].Y < p.points[j].Y
	case 2:
		return p.points[i].Z < p.points[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{points: p.points[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

// nearestSpacing returns, for every point, the distance to its nearest other
// point. Duplicated points have a spacing of zero. At least two points are
// required.
func nearestSpacing(pts []point) []float64 {
	// kdtree.New reorders its input.
	tree := kdtree.New(append(points(nil), pts...), false)
	spacing := make([]float64, len(pts))
	for i, p := range pts {
		keeper := kdtree.NewNKeeper(2)
		tree.NearestSet(keeper, p)
		best := math.Inf(1)
		self := false
		for _, item := range keeper.Heap {
			if item.Comparable == nil {
				continue
			}
			if item.Dist == 0 && !self {
				self = true
				continue
			}
			best = math.Min(best, item.Dist)
		}
		spacing[i] = math.Sqrt(best)
	}
	return spacing
}

// horizontalPoints projects the batch on the horizontal plane.
func horizontalPoints(c geometry.Coordinates) []point {
	pts := make([]point, c.Len())
	for i := range pts {
		pts[i] = point{X: c.Easting[i], Y: c.Northing[i]}
	}
	return pts
}

// checkExtent rejects data that cannot support source placement: no data or
// every datum at the same horizontal position.
func checkExtent(c geometry.Coordinates) error {
	if c.Len() == 0 {
		return fmt.Errorf("no data to place sources under: %w", geometry.ErrDegenerateGeometry)
	}
	for i := 1; i < c.Len(); i++ {
		if c.Easting[i] != c.Easting[0] || c.Northing[i] != c.Northing[0] {
			return nil
		}
	}
	return fmt.Errorf("data span a zero-extent area: %w", geometry.ErrDegenerateGeometry)
}

// meanSpacing is the mean horizontal nearest-neighbour spacing of the data.
func meanSpacing(c geometry.Coordinates) (float64, error) {
	if err := checkExtent(c); err != nil {
		return 0, err
	}
	return stat.Mean(nearestSpacing(horizontalPoints(c)), nil), nil
}

type blockKey struct{ row, col int }

// blockMedian groups the points into square blocks of the given size anchored
// at the south-west corner of the data and returns one point per non-empty
// block at the median of each coordinate. Blocks are returned in
// row-major order.
func blockMedian(c geometry.Coordinates, size float64) geometry.Coordinates {
	west, south := math.Inf(1), math.Inf(1)
	for i := range c.Easting {
		west = math.Min(west, c.Easting[i])
		south = math.Min(south, c.Northing[i])
	}

	blocks := make(map[blockKey][]int)
	for i := range c.Easting {
		k := blockKey{
			row: int(math.Floor((c.Northing[i] - south) / size)),
			col: int(math.Floor((c.Easting[i] - west) / size)),
		}
		blocks[k] = append(blocks[k], i)
	}
	keys := make([]blockKey, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].row != keys[b].row {
			return keys[a].row < keys[b].row
		}
		return keys[a].col < keys[b].col
	})

	out := geometry.Coordinates{
		Easting:  make([]float64, len(keys)),
		Northing: make([]float64, len(keys)),
		Upward:   make([]float64, len(keys)),
	}
	for b, k := range keys {
		sub := c.Subset(blocks[k])
		out.Easting[b] = median(sub.Easting)
		out.Northing[b] = median(sub.Northing)
		out.Upward[b] = median(sub.Upward)
	}
	return out
}

// median sorts values in place. Even counts average the two central values.
func median(values []float64) float64 {
	sort.Float64s(values)
	lower := stat.Quantile(0.5, stat.Empirical, values, nil)
	if len(values)%2 == 1 {
		return lower
	}
	return (lower + values[len(values)/2]) / 2
}
