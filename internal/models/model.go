// Package models holds the file formats read and written by the gravmag
// command: CSV surveys and grids, and YAML source models.
package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
)

// Magnetization of a body, either as components (A/m) or as intensity,
// inclination and declination (degrees).
type Magnetization struct {
	East        float64 `yaml:"east,omitempty"`
	North       float64 `yaml:"north,omitempty"`
	Up          float64 `yaml:"up,omitempty"`
	Intensity   float64 `yaml:"intensity,omitempty"`
	Inclination float64 `yaml:"inclination,omitempty"`
	Declination float64 `yaml:"declination,omitempty"`
}

// Vector returns the magnetization in (east, north, up) components.
func (m Magnetization) Vector() geometry.Vector {
	if m.Intensity != 0 {
		return geometry.MagnetizationFromAngles(m.Intensity, m.Inclination, m.Declination)
	}
	return geometry.Vector{East: m.East, North: m.North, Up: m.Up}
}

// PrismBody is one prism of a model file.
type PrismBody struct {
	// Bounds are west, east, south, north, bottom, top in meters
	Bounds        []float64      `yaml:"bounds"`
	Density       float64        `yaml:"density,omitempty"`
	Magnetization *Magnetization `yaml:"magnetization,omitempty"`
}

// PointBody is one point mass of a model file.
type PointBody struct {
	// Position is easting, northing, upward in meters, or longitude,
	// latitude in degrees and height in meters for spherical models
	Position []float64 `yaml:"position"`
	Mass     float64   `yaml:"mass"`
}

// TesseroidBody is one tesseroid of a spherical model file.
type TesseroidBody struct {
	// Bounds are west, east, south, north in degrees and bottom, top as
	// heights above the mean Earth radius in meters
	Bounds  []float64 `yaml:"bounds"`
	Density float64   `yaml:"density"`
}

// DipoleBody is one point dipole of a model file.
type DipoleBody struct {
	// Position is easting, northing, upward in meters
	Position []float64 `yaml:"position"`
	// Moment in A·m², as components or as intensity and angles
	Moment Magnetization `yaml:"moment"`
}

// Coordinate systems of a model file.
const (
	CoordinatesCartesian = "cartesian"
	CoordinatesSpherical = "spherical"
)

// ModelFile describes a source model. Cartesian models hold prisms, point
// masses and dipoles:
//
//	prisms:
//	  - bounds: [-500, 500, -500, 500, -1000, -200]
//	    density: 300
//	    magnetization: {intensity: 2, inclination: 45, declination: 10}
//	points:
//	  - position: [0, 0, -300]
//	    mass: 1.0e+10
//	dipoles:
//	  - position: [800, 0, -150]
//	    moment: {intensity: 1.0e+6, inclination: 60}
//
// Spherical models hold tesseroids and point masses located by longitude,
// latitude and height above the mean Earth radius:
//
//	coordinates: spherical
//	tesseroids:
//	  - bounds: [-1, 1, -1, 1, -30000, 0]
//	    density: 200
//	points:
//	  - position: [3, -2, -20000]
//	    mass: 1.0e+14
type ModelFile struct {
	Name        string          `yaml:"name,omitempty"`
	Coordinates string          `yaml:"coordinates,omitempty"`
	Prisms      []PrismBody     `yaml:"prisms,omitempty"`
	Points      []PointBody     `yaml:"points,omitempty"`
	Dipoles     []DipoleBody    `yaml:"dipoles,omitempty"`
	Tesseroids  []TesseroidBody `yaml:"tesseroids,omitempty"`
}

// IsSpherical reports whether the model is located in spherical coordinates.
func (m *ModelFile) IsSpherical() bool { return m.Coordinates == CoordinatesSpherical }

// ToSpherical reads easting and northing as longitude and latitude in degrees
// and upward as the height above geometry.MeanEarthRadius.
func ToSpherical(c geometry.Coordinates) geometry.Spherical {
	s := geometry.Spherical{
		Longitude: append([]float64(nil), c.Easting...),
		Latitude:  append([]float64(nil), c.Northing...),
		Radius:    make([]float64, len(c.Upward)),
	}
	for i, u := range c.Upward {
		s.Radius[i] = geometry.MeanEarthRadius + u
	}
	return s
}

// LoadModelFile reads and checks a YAML model file.
func LoadModelFile(path string) (*ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading model file: %w", err)
	}
	var m ModelFile
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing model file: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", path, err)
	}
	return &m, nil
}

// SaveModelFile writes a model file.
func SaveModelFile(path string, m *ModelFile) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("error marshaling model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the geometry of every body.
func (m *ModelFile) Validate() error {
	switch m.Coordinates {
	case "", CoordinatesCartesian, CoordinatesSpherical:
	default:
		return fmt.Errorf("unknown coordinates %q, want %s or %s", m.Coordinates, CoordinatesCartesian, CoordinatesSpherical)
	}
	if len(m.Prisms)+len(m.Points)+len(m.Dipoles)+len(m.Tesseroids) == 0 {
		return fmt.Errorf("model has no sources: %w", geometry.ErrShape)
	}
	if m.IsSpherical() {
		if len(m.Prisms) != 0 || len(m.Dipoles) != 0 {
			return fmt.Errorf("prisms and dipoles need cartesian coordinates")
		}
		sph, err := m.SphericalGravity()
		if err != nil {
			return err
		}
		if err := geometry.ValidateTesseroids(sph.Tesseroids); err != nil {
			return err
		}
		if err := sph.Points.Validate(); err != nil {
			return fmt.Errorf("points: %w", err)
		}
		return nil
	}

	if len(m.Tesseroids) != 0 {
		return fmt.Errorf("tesseroids need spherical coordinates")
	}
	for i, b := range m.Prisms {
		p, err := geometry.NewPrismFromSlice(b.Bounds)
		if err != nil {
			return fmt.Errorf("prism %d: %w", i, err)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("prism %d: %w", i, err)
		}
	}
	for i, b := range m.Points {
		if len(b.Position) != 3 {
			return fmt.Errorf("point %d needs 3 coordinates, got %d: %w", i, len(b.Position), geometry.ErrShape)
		}
	}
	for i, b := range m.Dipoles {
		if len(b.Position) != 3 {
			return fmt.Errorf("dipole %d needs 3 coordinates, got %d: %w", i, len(b.Position), geometry.ErrShape)
		}
	}
	return nil
}

// Gravity returns the prisms and point masses of a Cartesian file.
func (m *ModelFile) Gravity() (forward.Model, error) {
	var out forward.Model
	for i, b := range m.Prisms {
		p, err := geometry.NewPrismFromSlice(b.Bounds)
		if err != nil {
			return forward.Model{}, fmt.Errorf("prism %d: %w", i, err)
		}
		out.Prisms = append(out.Prisms, p)
		out.Densities = append(out.Densities, b.Density)
	}
	var e, n, u []float64
	for _, b := range m.Points {
		e = append(e, b.Position[0])
		n = append(n, b.Position[1])
		u = append(u, b.Position[2])
		out.Masses = append(out.Masses, b.Mass)
	}
	out.Points = geometry.Coordinates{Easting: e, Northing: n, Upward: u}
	return out, nil
}

// Magnetic returns the magnetized prisms of the file. Prisms without a
// magnetization are left out.
func (m *ModelFile) Magnetic() ([]geometry.Prism, []geometry.Vector, error) {
	var prisms []geometry.Prism
	var magnetization []geometry.Vector
	for i, b := range m.Prisms {
		if b.Magnetization == nil {
			continue
		}
		p, err := geometry.NewPrismFromSlice(b.Bounds)
		if err != nil {
			return nil, nil, fmt.Errorf("prism %d: %w", i, err)
		}
		prisms = append(prisms, p)
		magnetization = append(magnetization, b.Magnetization.Vector())
	}
	return prisms, magnetization, nil
}

// Dipoles returns the positions and moments of the dipoles of the file.
func (m *ModelFile) Dipoles() (geometry.Coordinates, []geometry.Vector) {
	var c geometry.Coordinates
	moments := make([]geometry.Vector, 0, len(m.Dipoles))
	for _, b := range m.Dipoles {
		c.Easting = append(c.Easting, b.Position[0])
		c.Northing = append(c.Northing, b.Position[1])
		c.Upward = append(c.Upward, b.Position[2])
		moments = append(moments, b.Moment.Vector())
	}
	return c, moments
}

// SphericalGravity returns the tesseroids and point masses of a spherical
// file with heights turned into geocentric radii.
func (m *ModelFile) SphericalGravity() (forward.SphericalModel, error) {
	var out forward.SphericalModel
	for i, b := range m.Tesseroids {
		if len(b.Bounds) != 6 {
			return forward.SphericalModel{}, fmt.Errorf("tesseroid %d needs 6 bounds, got %d: %w", i, len(b.Bounds), geometry.ErrShape)
		}
		out.Tesseroids = append(out.Tesseroids, geometry.Tesseroid{
			West: b.Bounds[0], East: b.Bounds[1],
			South: b.Bounds[2], North: b.Bounds[3],
			Bottom: geometry.MeanEarthRadius + b.Bounds[4],
			Top:    geometry.MeanEarthRadius + b.Bounds[5],
		})
		out.Densities = append(out.Densities, b.Density)
	}
	var c geometry.Coordinates
	for i, b := range m.Points {
		if len(b.Position) != 3 {
			return forward.SphericalModel{}, fmt.Errorf("point %d needs 3 coordinates, got %d: %w", i, len(b.Position), geometry.ErrShape)
		}
		c.Easting = append(c.Easting, b.Position[0])
		c.Northing = append(c.Northing, b.Position[1])
		c.Upward = append(c.Upward, b.Position[2])
		out.Masses = append(out.Masses, b.Mass)
	}
	out.Points = ToSpherical(c)
	return out, nil
}
