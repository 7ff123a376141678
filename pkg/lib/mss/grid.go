// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package libmss

import (
	"fmt"
)

// Axis is one of the three axes of the grid.
type Axis int

const (
	AxisPE Axis = iota
	AxisMSS
	AxisSlice
	axisCount
)

const (
	// DefaultMSSPerPE is the default number of memory subsystems per PE.
	DefaultMSSPerPE = 4
	// DefaultSlicesPerMSS is the default number of slices per MSS.
	DefaultSlicesPerMSS = 8
)

var (
	axisNames = map[Axis]string{
		AxisPE:    "PE",
		AxisMSS:   "MSS",
		AxisSlice: "Slice",
	}
)

// String returns the name of the axis.
func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("%%!(libmss:Bad-Axis %d)", a)
}

// Coordinate is a single (PE, MSS, slice) location of the grid.
type Coordinate struct {
	PE    int
	MSS   int
	Slice int
}

// String returns a string representation of the coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("PE%d/MSS%d/Slice%d", c.PE, c.MSS, c.Slice)
}

// Grid describes the size of each axis of the coordinate space.
type Grid struct {
	PEs          int `json:"peCount"`
	MSSPerPE     int `json:"mssPerPE"`
	SlicesPerMSS int `json:"slicesPerMSS"`
}

// DefaultGrid returns a grid of the given number of PEs with the default
// number of memory subsystems and slices.
func DefaultGrid(pes int) Grid {
	return Grid{
		PEs:          pes,
		MSSPerPE:     DefaultMSSPerPE,
		SlicesPerMSS: DefaultSlicesPerMSS,
	}
}

// Validate checks that every axis of the grid has a positive size.
func (g Grid) Validate() error {
	for a := AxisPE; a < axisCount; a++ {
		if g.AxisSize(a) <= 0 {
			return fmt.Errorf("%w: %s axis size %d", ErrInvalidGrid, a, g.AxisSize(a))
		}
	}
	return nil
}

// AxisSize returns the number of values on the given axis.
func (g Grid) AxisSize(a Axis) int {
	switch a {
	case AxisPE:
		return g.PEs
	case AxisMSS:
		return g.MSSPerPE
	case AxisSlice:
		return g.SlicesPerMSS
	}
	return 0
}

// Size returns the total number of coordinates in the grid.
func (g Grid) Size() int {
	return g.PEs * g.MSSPerPE * g.SlicesPerMSS
}

// Contains checks if the coordinate is inside the grid.
func (g Grid) Contains(c Coordinate) bool {
	return 0 <= c.PE && c.PE < g.PEs &&
		0 <= c.MSS && c.MSS < g.MSSPerPE &&
		0 <= c.Slice && c.Slice < g.SlicesPerMSS
}

// Index returns the linear index of the coordinate.
func (g Grid) Index(c Coordinate) int {
	return (c.PE*g.MSSPerPE+c.MSS)*g.SlicesPerMSS + c.Slice
}

// Coordinate returns the coordinate for the linear index.
func (g Grid) Coordinate(idx int) Coordinate {
	return Coordinate{
		PE:    idx / (g.MSSPerPE * g.SlicesPerMSS),
		MSS:   (idx / g.SlicesPerMSS) % g.MSSPerPE,
		Slice: idx % g.SlicesPerMSS,
	}
}

// Universe returns the signature covering every coordinate of the grid.
func (g Grid) Universe() Signature {
	return signatureRange(0, g.Size())
}

// Signature returns the signature of the given coordinates.
func (g Grid) Signature(coords ...Coordinate) Signature {
	ids := make([]int, 0, len(coords))
	for _, c := range coords {
		ids = append(ids, g.Index(c))
	}
	return newSignature(ids...)
}

// Coordinates returns the coordinates of the signature in increasing
// index order.
func (g Grid) Coordinates(s Signature) []Coordinate {
	coords := make([]Coordinate, 0, s.Size())
	for _, idx := range s.Indices() {
		coords = append(coords, g.Coordinate(idx))
	}
	return coords
}

// crossProduct returns the signature of all combinations of the given
// per-axis values.
func (g Grid) crossProduct(values [axisCount][]int) Signature {
	ids := make([]int, 0, len(values[AxisPE])*len(values[AxisMSS])*len(values[AxisSlice]))
	for _, pe := range values[AxisPE] {
		for _, mss := range values[AxisMSS] {
			for _, slice := range values[AxisSlice] {
				ids = append(ids, g.Index(Coordinate{PE: pe, MSS: mss, Slice: slice}))
			}
		}
	}
	return newSignature(ids...)
}

// String returns a string representation of the grid.
func (g Grid) String() string {
	return fmt.Sprintf("%d PEs x %d MSS x %d slices", g.PEs, g.MSSPerPE, g.SlicesPerMSS)
}
