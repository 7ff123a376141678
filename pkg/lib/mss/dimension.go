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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DimensionKind is the kind of a dimension requirement.
type DimensionKind int

const (
	// KindAll covers every value of an axis.
	KindAll DimensionKind = iota
	// KindSpecific covers a single value of an axis, possibly auto-selected.
	KindSpecific
	// KindGroup covers a fixed group of slices.
	KindGroup
)

// SliceGroup is a fixed group of GroupWidth consecutive slices.
type SliceGroup int

const (
	// GroupLow is slices 0-3.
	GroupLow SliceGroup = iota
	// GroupHigh is slices 4-7.
	GroupHigh
	groupCount
)

const (
	// GroupWidth is the number of slices in a group. Parallel requirements
	// are striped over this many slices.
	GroupWidth = 4
)

// IsValid checks if the group is a known one.
func (g SliceGroup) IsValid() bool {
	return 0 <= g && g < groupCount
}

// Slices returns the slices of the group.
func (g SliceGroup) Slices() []int {
	first := int(g) * GroupWidth
	slices := make([]int, 0, GroupWidth)
	for s := first; s < first+GroupWidth; s++ {
		slices = append(slices, s)
	}
	return slices
}

// String returns the slice range of the group, for instance 0_3.
func (g SliceGroup) String() string {
	if !g.IsValid() {
		return fmt.Sprintf("%%!(libmss:Bad-Group %d)", g)
	}
	first := int(g) * GroupWidth
	return fmt.Sprintf("%d_%d", first, first+GroupWidth-1)
}

// Dimension is the requirement for a single axis of the grid.
type Dimension struct {
	kind  DimensionKind
	value int
}

const (
	autoValue = -1
)

var (
	// All covers every value of the axis.
	All = Dimension{kind: KindAll}
	// Auto leaves the value of the axis for the Manager to pick.
	Auto = Dimension{kind: KindSpecific, value: autoValue}
)

// Specific returns a dimension requirement for the given axis value.
func Specific(value int) Dimension {
	return Dimension{kind: KindSpecific, value: value}
}

// Group returns a dimension requirement for the given slice group.
func Group(g SliceGroup) Dimension {
	return Dimension{kind: KindGroup, value: int(g)}
}

// Kind returns the kind of the requirement.
func (d Dimension) Kind() DimensionKind {
	return d.kind
}

// IsAll checks if the requirement covers the full axis.
func (d Dimension) IsAll() bool {
	return d.kind == KindAll
}

// IsAuto checks if the axis value is left for the Manager to pick.
func (d Dimension) IsAuto() bool {
	return d.kind == KindSpecific && d.value == autoValue
}

// IsGroup checks if the requirement is for a slice group.
func (d Dimension) IsGroup() bool {
	return d.kind == KindGroup
}

// Value returns the specific value of the requirement. The second return
// value is false for auto and for non-specific requirements.
func (d Dimension) Value() (int, bool) {
	if d.kind != KindSpecific || d.value == autoValue {
		return 0, false
	}
	return d.value, true
}

// SliceGroup returns the group of a group requirement.
func (d Dimension) SliceGroup() (SliceGroup, bool) {
	if d.kind != KindGroup {
		return 0, false
	}
	return SliceGroup(d.value), true
}

// NeedsSelection checks if the Manager needs to pick the axis value.
func (d Dimension) NeedsSelection() bool {
	return d.IsAuto()
}

// Values returns the axis values covered by the requirement for an axis
// of the given size. An auto requirement covers no values until it is
// resolved.
func (d Dimension) Values(size int) []int {
	switch d.kind {
	case KindAll:
		values := make([]int, 0, size)
		for v := 0; v < size; v++ {
			values = append(values, v)
		}
		return values
	case KindSpecific:
		if d.value == autoValue {
			return nil
		}
		return []int{d.value}
	case KindGroup:
		return SliceGroup(d.value).Slices()
	}
	return nil
}

// Width returns the number of axis values covered by the requirement once
// resolved.
func (d Dimension) Width(size int) int {
	switch d.kind {
	case KindAll:
		return size
	case KindGroup:
		return GroupWidth
	}
	return 1
}

// validate checks the requirement against the given axis.
func (d Dimension) validate(axis Axis, size int) error {
	switch d.kind {
	case KindAll:
		return nil
	case KindSpecific:
		if d.value == autoValue {
			return nil
		}
		if d.value < 0 || d.value >= size {
			return fmt.Errorf("%w: %s%d, axis size %d", ErrInvalidCoordinate, axis, d.value, size)
		}
		return nil
	case KindGroup:
		if axis != AxisSlice {
			return fmt.Errorf("%w: group requirement on %s axis", ErrInvalidGroup, axis)
		}
		g := SliceGroup(d.value)
		if !g.IsValid() {
			return fmt.Errorf("%w: unknown group %d", ErrInvalidGroup, d.value)
		}
		if last := g.Slices()[GroupWidth-1]; last >= size {
			return fmt.Errorf("%w: group %s, only %d slices", ErrInvalidGroup, g, size)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %d", ErrInvalidDimension, d.kind)
}

// breadth scores the scope of the requirement, lower being broader.
func (d Dimension) breadth() int {
	switch d.kind {
	case KindAll:
		return 0
	case KindGroup:
		return 1
	}
	return 2
}

// Describe returns a description of the requirement for the given axis,
// for instance All-PE, MSS2, Auto-PE or Slice-0_3.
func (d Dimension) Describe(axis Axis) string {
	switch d.kind {
	case KindAll:
		return "All-" + axis.String()
	case KindSpecific:
		if d.value == autoValue {
			return "Auto-" + axis.String()
		}
		return axis.String() + strconv.Itoa(d.value)
	case KindGroup:
		return axis.String() + "-" + SliceGroup(d.value).String()
	}
	return "Unknown-" + axis.String()
}

// String returns the requirement in the format accepted by ParseDimension.
func (d Dimension) String() string {
	switch d.kind {
	case KindAll:
		return "all"
	case KindSpecific:
		if d.value == autoValue {
			return "auto"
		}
		return strconv.Itoa(d.value)
	case KindGroup:
		switch SliceGroup(d.value) {
		case GroupLow:
			return "low"
		case GroupHigh:
			return "high"
		}
	}
	return fmt.Sprintf("%%!(libmss:Bad-Dimension %d/%d)", d.kind, d.value)
}

// ParseDimension parses a dimension requirement. Accepted formats are
// 'all', 'auto', a non-negative axis value, and for slice groups 'low',
// 'high', 'group:low', 'group:high', '0-3' or '4-7'.
func ParseDimension(str string) (Dimension, error) {
	s := strings.ToLower(strings.TrimSpace(str))
	s = strings.TrimPrefix(s, "group:")

	switch s {
	case "all", "*":
		return All, nil
	case "auto", "any":
		return Auto, nil
	case "low", "0-3", "0_3":
		return Group(GroupLow), nil
	case "high", "4-7", "4_7":
		return Group(GroupHigh), nil
	}

	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return Dimension{}, fmt.Errorf("%w: %q", ErrInvalidDimension, str)
	}
	return Specific(v), nil
}

// MustParseDimension parses a dimension requirement, panicking on failure.
func MustParseDimension(str string) Dimension {
	d, err := ParseDimension(str)
	if err != nil {
		panic(err)
	}
	return d
}

// MarshalJSON is the json.Marshaller for Dimension.
func (d Dimension) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON is the json.Unmarshaller for Dimension.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	i := 0
	if err := json.Unmarshal(data, &i); err == nil {
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidDimension, i)
		}
		*d = Specific(i)
		return nil
	}

	str := ""
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDimension, err)
	}

	dim, err := ParseDimension(str)
	if err != nil {
		return err
	}

	*d = dim
	return nil
}
