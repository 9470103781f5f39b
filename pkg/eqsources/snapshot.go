package eqsources

import (
	"fmt"

	"gravmag/pkg/geometry"
)

// Snapshot kinds.
const (
	KindPoints = "points"
	KindLayer  = "layer"
)

// Snapshot is the serializable state of a fitted point-source model.
type Snapshot struct {
	Kind         string    `json:"kind"`
	Easting      []float64 `json:"easting"`
	Northing     []float64 `json:"northing"`
	Upward       []float64 `json:"upward"`
	Coefficients []float64 `json:"coefficients"`
	Damping      float64   `json:"damping"`
}

// Sources returns the number of sources in the snapshot.
func (s Snapshot) Sources() int { return len(s.Coefficients) }

// Coordinates returns the source positions held by the snapshot.
func (s Snapshot) Coordinates() geometry.Coordinates {
	return geometry.Coordinates{Easting: s.Easting, Northing: s.Northing, Upward: s.Upward}
}

func snapshotOf(kind string, f *fitState[geometry.Coordinates]) (Snapshot, error) {
	st, err := f.load()
	if err != nil {
		return Snapshot{}, err
	}
	src := st.sources.Clone()
	return Snapshot{
		Kind:         kind,
		Easting:      src.Easting,
		Northing:     src.Northing,
		Upward:       src.Upward,
		Coefficients: append([]float64(nil), st.coefs...),
		Damping:      st.damping,
	}, nil
}

// Snapshot captures the fitted sources and coefficients.
func (p *Points) Snapshot() (Snapshot, error) { return snapshotOf(KindPoints, &p.fitState) }

// Snapshot captures the fitted layer and coefficients.
func (l *Layer) Snapshot() (Snapshot, error) { return snapshotOf(KindLayer, &l.fitState) }

// Restore rebuilds a fitted model from a snapshot. The returned model
// predicts exactly like the one the snapshot was taken from; its placement
// settings are the defaults.
func Restore(s Snapshot) (Model, error) {
	sources, err := geometry.NewCoordinates(
		append([]float64(nil), s.Easting...),
		append([]float64(nil), s.Northing...),
		append([]float64(nil), s.Upward...))
	if err != nil {
		return nil, fmt.Errorf("snapshot sources: %w", err)
	}
	if len(s.Coefficients) != sources.Len() {
		return nil, fmt.Errorf("snapshot has %d sources but %d coefficients: %w", sources.Len(), len(s.Coefficients), geometry.ErrShape)
	}
	state := &fitted[geometry.Coordinates]{
		sources: sources,
		coefs:   append([]float64(nil), s.Coefficients...),
		damping: s.Damping,
	}

	switch s.Kind {
	case KindPoints:
		p := NewPoints()
		p.store(state)
		return p, nil
	case KindLayer:
		l := NewLayer()
		l.store(state)
		return l, nil
	}
	return nil, fmt.Errorf("unknown snapshot kind %q", s.Kind)
}
