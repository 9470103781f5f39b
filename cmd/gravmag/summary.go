package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/floats"
)

// summary is an ordered list of key/value rows printed as a table.
type summary [][2]string

func (s *summary) add(key, format string, args ...any) {
	*s = append(*s, [2]string{key, fmt.Sprintf(format, args...)})
}

func (s *summary) count(key string, n int) {
	s.add(key, "%s", formatCount(n))
}

func (s *summary) elapsed(start time.Time) {
	s.add("elapsed", "%s", time.Since(start).Round(time.Millisecond))
}

// valueRange adds the minimum and maximum of values.
func (s *summary) valueRange(name string, values []float64) {
	if len(values) == 0 {
		return
	}
	s.add(name+" min", "%.6g", floats.Min(values))
	s.add(name+" max", "%.6g", floats.Max(values))
}

func (s summary) render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, row := range s {
		table.Append(row[:])
	}
	table.Render()
}

func formatCount(n int) string { return humanize.Comma(int64(n)) }
