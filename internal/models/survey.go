package models

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gravmag/pkg/geometry"
	"gravmag/pkg/grid"
)

// Survey is a set of field observations at scattered points.
type Survey struct {
	// Coordinates of the observation points in meters
	Coordinates geometry.Coordinates

	// Values observed at each point
	Values []float64

	// Weights of each observation, nil when the file has no weight column
	Weights []float64
}

// Len returns the number of observations.
func (s Survey) Len() int { return len(s.Values) }

// surveyColumns are the accepted header names, in the default order.
var surveyColumns = []string{"easting", "northing", "upward", "value", "weight"}

// columnAliases name the coordinate columns of spherical surveys.
var columnAliases = map[string]string{"longitude": "easting", "latitude": "northing", "height": "upward"}

// ReadSurvey reads a CSV survey. A header row naming the columns is
// optional; without one the columns are easting, northing, upward, value
// and an optional weight. Longitude, latitude and height are accepted as
// names of the coordinate columns. Blank lines and lines starting with #
// are skipped.
func ReadSurvey(r io.Reader) (Survey, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	index := map[string]int{"easting": 0, "northing": 1, "upward": 2, "value": 3, "weight": 4}
	var s Survey
	var e, n, u []float64
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Survey{}, fmt.Errorf("reading survey: %w", err)
		}
		line++
		if line == 1 && isHeader(record) {
			index, err = headerIndex(record)
			if err != nil {
				return Survey{}, err
			}
			continue
		}

		row, err := parseRow(record, index)
		if err != nil {
			return Survey{}, fmt.Errorf("survey record %d: %w", line, err)
		}
		e = append(e, row["easting"])
		n = append(n, row["northing"])
		u = append(u, row["upward"])
		s.Values = append(s.Values, row["value"])
		if w, ok := row["weight"]; ok {
			s.Weights = append(s.Weights, w)
		} else if s.Weights != nil {
			return Survey{}, fmt.Errorf("survey record %d: missing weight", line)
		}
	}
	if len(s.Weights) != 0 && len(s.Weights) != len(s.Values) {
		return Survey{}, fmt.Errorf("only %d of %d records have a weight: %w", len(s.Weights), len(s.Values), geometry.ErrShape)
	}

	coords, err := geometry.NewCoordinates(e, n, u)
	if err != nil {
		return Survey{}, err
	}
	s.Coordinates = coords
	return s, nil
}

// LoadSurvey reads a CSV survey from a file.
func LoadSurvey(path string) (Survey, error) {
	f, err := os.Open(path)
	if err != nil {
		return Survey{}, fmt.Errorf("error opening survey: %w", err)
	}
	defer f.Close()
	s, err := ReadSurvey(f)
	if err != nil {
		return Survey{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteSurvey writes observations with a header row. name is used as the
// header of the value column.
func WriteSurvey(w io.Writer, coords geometry.Coordinates, name string, values []float64) error {
	if len(values) != coords.Len() {
		return fmt.Errorf("%d values for %d points: %w", len(values), coords.Len(), geometry.ErrShape)
	}
	if name == "" {
		name = "value"
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"easting", "northing", "upward", name}); err != nil {
		return err
	}
	for i, v := range values {
		e, n, u := coords.At(i)
		if err := writer.Write([]string{formatFloat(e), formatFloat(n), formatFloat(u), formatFloat(v)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteGrid writes a grid node by node in row-major order, northing
// slowest, so ReadGrid can rebuild it.
func WriteGrid(w io.Writer, g *grid.Grid) error {
	coords := g.Coordinates()
	return WriteSurvey(w, coords, g.Name, g.Values)
}

// SaveGrid writes a grid to a CSV file.
func SaveGrid(path string, g *grid.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating grid file: %w", err)
	}
	if err := WriteGrid(f, g); err != nil {
		f.Close()
		return fmt.Errorf("error writing grid file: %w", err)
	}
	return f.Close()
}

// WriteProfile writes profile values with the distance of each point from
// the start of the profile.
func WriteProfile(w io.Writer, profile grid.ProfileResult, name string) error {
	if name == "" {
		name = "value"
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"distance", "easting", "northing", "upward", name}); err != nil {
		return err
	}
	for i, v := range profile.Values {
		e, n, u := profile.Coordinates.At(i)
		record := []string{formatFloat(profile.Distance[i]), formatFloat(e), formatFloat(n), formatFloat(u), formatFloat(v)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadGrid reads a grid written by WriteGrid. The value column header
// becomes the grid name.
func ReadGrid(r io.Reader) (*grid.Grid, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading grid: %w", err)
	}
	if len(records) < 2 || len(records[0]) != 4 || !isHeader(records[0]) {
		return nil, fmt.Errorf("grid file needs a header and at least one node: %w", geometry.ErrShape)
	}
	name := records[0][3]

	rows := make([]map[string]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := parseRow(record, map[string]int{"easting": 0, "northing": 1, "upward": 2, "value": 3})
		if err != nil {
			return nil, fmt.Errorf("grid record %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}

	// the first row of nodes gives the easting axis
	var easting, northing []float64
	for _, row := range rows {
		if row["northing"] != rows[0]["northing"] {
			break
		}
		easting = append(easting, row["easting"])
	}
	cols := len(easting)
	if len(rows)%cols != 0 {
		return nil, fmt.Errorf("%d nodes do not fill rows of %d: %w", len(rows), cols, geometry.ErrShape)
	}
	values := make([]float64, len(rows))
	for k, row := range rows {
		if k%cols == 0 {
			northing = append(northing, row["northing"])
		}
		if row["easting"] != easting[k%cols] || row["northing"] != northing[k/cols] {
			return nil, fmt.Errorf("grid record %d at (%g, %g) is not on the node order of a regular grid: %w",
				k+2, row["easting"], row["northing"], geometry.ErrShape)
		}
		values[k] = row["value"]
	}
	upward, _ := strconv.ParseFloat(records[1][2], 64)
	return grid.New(name, easting, northing, upward, values)
}

// LoadGrid reads a grid from a CSV file.
func LoadGrid(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening grid: %w", err)
	}
	defer f.Close()
	return ReadGrid(f)
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	return err != nil
}

func headerIndex(record []string) (map[string]int, error) {
	index := make(map[string]int, len(record))
	unknown := -1
	for i, name := range record {
		name = strings.ToLower(strings.TrimSpace(name))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if slices.Contains(surveyColumns, name) {
			index[name] = i
		} else if unknown < 0 {
			unknown = i
		}
	}
	// files written by WriteSurvey name the value column after the field
	if _, ok := index["value"]; !ok && unknown >= 0 {
		index["value"] = unknown
	}
	for _, required := range surveyColumns[:4] {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("survey header %v has no %q column", record, required)
		}
	}
	return index, nil
}

func parseRow(record []string, index map[string]int) (map[string]float64, error) {
	row := make(map[string]float64, len(index))
	for name, col := range index {
		if col >= len(record) {
			if name == "weight" {
				continue
			}
			return nil, fmt.Errorf("missing %s column", name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q", name, record[col])
		}
		row[name] = v
	}
	return row, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
