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
	"math"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/containers/pegrid/pkg/utils/idxset"
)

// Mode is the allocation mode of a requirement.
type Mode int

const (
	// Serial allocates the full size in every affected slice.
	Serial Mode = iota
	// Parallel stripes the data over a group of slices, allocating a
	// GroupWidth'th of the size in every affected slice.
	Parallel
)

// String returns the name of the mode.
func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case Parallel:
		return "parallel"
	}
	return fmt.Sprintf("%%!(libmss:Bad-Mode %d)", m)
}

// ParseMode parses an allocation mode.
func ParseMode(str string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "serial", "":
		return Serial, nil
	case "parallel":
		return Parallel, nil
	}
	return Serial, fmt.Errorf("%w: %q", ErrInvalidMode, str)
}

// MarshalJSON is the json.Marshaller for Mode.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON is the json.Unmarshaller for Mode.
func (m *Mode) UnmarshalJSON(data []byte) error {
	str := ""
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMode, err)
	}
	mode, err := ParseMode(str)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// State is the fulfillment state of a requirement.
type State int

const (
	// Pending requirements have not been allocated (yet).
	Pending State = iota
	// Fulfilled requirements have been allocated.
	Fulfilled
)

// String returns the name of the state.
func (s State) String() string {
	if s == Fulfilled {
		return "fulfilled"
	}
	return "pending"
}

// AllocationDetails describes how a requirement was fulfilled.
type AllocationDetails struct {
	// Address is the local slice address of the allocation.
	Address int64 `json:"address"`
	// PE, MSS and Slices are the resolved axis values.
	PE     []int `json:"pe"`
	MSS    []int `json:"mss"`
	Slices []int `json:"slices"`
	// Partitions is the number of partitions at allocation time.
	Partitions int `json:"partitions"`
}

// Coordinates returns the number of coordinates the allocation covers.
func (d *AllocationDetails) Coordinates() int {
	return len(d.PE) * len(d.MSS) * len(d.Slices)
}

// String returns a string representation of the details, for instance
// PE0-1/MSS2/Slice0-3 @ 0x00000100.
func (d *AllocationDetails) String() string {
	return fmt.Sprintf("PE%s/MSS%s/Slice%s @ 0x%08x",
		idxset.New(d.PE...), idxset.New(d.MSS...), idxset.New(d.Slices...), d.Address)
}

// Requirement is a request to allocate memory in some coordinates of the
// grid. Apart from its fulfillment state a requirement is immutable.
type Requirement struct {
	id      string
	size    int64
	dims    [axisCount]Dimension
	mode    Mode
	state   State
	details *AllocationDetails
	created int64
}

// RequirementOption is an option for a requirement.
type RequirementOption func(*Requirement)

// WithMode sets the allocation mode of a requirement.
func WithMode(mode Mode) RequirementOption {
	return func(r *Requirement) {
		r.mode = mode
	}
}

// NewRequirement creates a new pending requirement. If id is empty a new
// one is generated.
func NewRequirement(id string, size int64, pe, mss, slice Dimension, options ...RequirementOption) *Requirement {
	if id == "" {
		id = NewID()
	}

	r := &Requirement{
		id:      id,
		size:    size,
		dims:    [axisCount]Dimension{pe, mss, slice},
		mode:    Serial,
		created: nextCreated.Add(1),
	}

	for _, o := range options {
		o(r)
	}

	return r
}

// ID returns the ID of the requirement.
func (r *Requirement) ID() string {
	return r.id
}

// Size returns the requested size.
func (r *Requirement) Size() int64 {
	return r.size
}

// Mode returns the allocation mode.
func (r *Requirement) Mode() Mode {
	return r.mode
}

// PE returns the PE axis requirement.
func (r *Requirement) PE() Dimension {
	return r.dims[AxisPE]
}

// MSS returns the MSS axis requirement.
func (r *Requirement) MSS() Dimension {
	return r.dims[AxisMSS]
}

// Slice returns the slice axis requirement.
func (r *Requirement) Slice() Dimension {
	return r.dims[AxisSlice]
}

// Dimension returns the requirement for the given axis.
func (r *Requirement) Dimension(a Axis) Dimension {
	return r.dims[a]
}

// State returns the fulfillment state.
func (r *Requirement) State() State {
	return r.state
}

// IsFulfilled checks if the requirement has been allocated.
func (r *Requirement) IsFulfilled() bool {
	return r.state == Fulfilled
}

// Details returns the allocation details of a fulfilled requirement, or
// nil for a pending one.
func (r *Requirement) Details() *AllocationDetails {
	if r.details == nil {
		return nil
	}
	d := *r.details
	d.PE = slices.Clone(d.PE)
	d.MSS = slices.Clone(d.MSS)
	d.Slices = slices.Clone(d.Slices)
	return &d
}

// AllocationSize returns the amount of memory allocated in each affected
// slice.
func (r *Requirement) AllocationSize() int64 {
	if r.mode == Parallel {
		return r.size / GroupWidth
	}
	return r.size
}

// AutoCount returns the number of axes needing selection.
func (r *Requirement) AutoCount() int {
	cnt := 0
	for _, d := range r.dims {
		if d.NeedsSelection() {
			cnt++
		}
	}
	return cnt
}

// ScopeBreadth scores the breadth of the requirement scope. Lower scores
// are broader.
func (r *Requirement) ScopeBreadth() int {
	score := 0
	for _, d := range r.dims {
		score += d.breadth()
	}
	return score
}

// Scope returns a description of the requirement scope, for instance
// All-PE × MSS1 × Slice-0_3 PARALLEL.
func (r *Requirement) Scope() string {
	desc := r.dims[AxisPE].Describe(AxisPE) + " × " +
		r.dims[AxisMSS].Describe(AxisMSS) + " × " +
		r.dims[AxisSlice].Describe(AxisSlice)
	if r.mode == Parallel {
		desc += " PARALLEL"
	}
	return desc
}

// String returns a string representation of this requirement.
func (r *Requirement) String() string {
	str := "requirement<" + r.id + ", size " + HumanReadableSize(r.size) + ", " + r.Scope()
	if r.details != nil {
		str += ", " + r.details.String()
	}
	return str + ">"
}

// FulfillmentSummary returns a one-line summary of the fulfillment state.
func (r *Requirement) FulfillmentSummary() string {
	if r.details == nil {
		return r.id + ": " + r.state.String()
	}
	return r.id + ": " + r.state.String() + " at " + r.details.String() +
		" (" + strconv.Itoa(r.details.Partitions) + " partitions)"
}

// validate checks the requirement against the given grid.
func (r *Requirement) validate(g Grid) error {
	if r.state == Fulfilled {
		return fmt.Errorf("%w: %s", ErrAlreadyFulfilled, r.id)
	}
	if r.size <= 0 {
		return fmt.Errorf("%w: %s has size %d", ErrInvalidRequirement, r.id, r.size)
	}
	for a := AxisPE; a < axisCount; a++ {
		if err := r.dims[a].validate(a, g.AxisSize(a)); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidRequirement, r.id, err)
		}
	}
	if r.mode != Serial && r.mode != Parallel {
		return fmt.Errorf("%w: %s: %w: %d", ErrInvalidRequirement, r.id, ErrInvalidMode, r.mode)
	}
	if r.mode == Parallel && r.size%GroupWidth != 0 {
		return fmt.Errorf("%w: %s: %w: size %d", ErrInvalidRequirement, r.id, ErrUnalignedParallel, r.size)
	}
	return nil
}

// fulfill marks the requirement allocated with the given details.
func (r *Requirement) fulfill(d *AllocationDetails) error {
	if r.state == Fulfilled {
		return fmt.Errorf("%w: %s", ErrAlreadyFulfilled, r.id)
	}
	r.state = Fulfilled
	r.details = d
	return nil
}

var (
	nextID      atomic.Int64
	nextCreated atomic.Int64
)

// NewID returns a new internally generated ID. It is used to give default
// IDs for requirements in case one is not provided by the caller.
func NewID() string {
	return "requirement-id-" + strconv.FormatInt(nextID.Add(1), 16)
}

// SortRequirements filters the requirements by a filter function into a
// new slice, then stable sorts the slice by chaining the given sorting
// functions. A nil filter function picks all requirements.
func SortRequirements(requirements []*Requirement, f RequirementFilter, s ...RequirementSorter) []*Requirement {
	slice := make([]*Requirement, 0, len(requirements))
	for _, req := range requirements {
		if f == nil || f(req) {
			slice = append(slice, req)
		}
	}
	if len(s) > 0 {
		slices.SortStableFunc(slice, func(r1, r2 *Requirement) int {
			for _, fn := range s {
				if diff := fn(r1, r2); diff != 0 {
					return diff
				}
			}
			return 0
		})
	}
	return slice
}

// RequirementFilter is a function to filter requirements.
type RequirementFilter func(*Requirement) bool

// RequirementSorter is a function to compare requirements for sorting.
type RequirementSorter func(r1, r2 *Requirement) int

// FulfilledRequirements filters fulfilled requirements.
func FulfilledRequirements(r *Requirement) bool {
	return r.IsFulfilled()
}

// PendingRequirements filters pending requirements.
func PendingRequirements(r *Requirement) bool {
	return !r.IsFulfilled()
}

// RequirementsByScopeBreadth compares requirements by increasing scope
// breadth score, IOW broadest scope first.
func RequirementsByScopeBreadth(r1, r2 *Requirement) int {
	return r1.ScopeBreadth() - r2.ScopeBreadth()
}

// RequirementsByAutoCount compares requirements by increasing number of
// axes needing selection.
func RequirementsByAutoCount(r1, r2 *Requirement) int {
	return r1.AutoCount() - r2.AutoCount()
}

// RequirementsByDecreasingSize compares requirements by decreasing size.
func RequirementsByDecreasingSize(r1, r2 *Requirement) int {
	switch {
	case r1.size > r2.size:
		return -1
	case r1.size < r2.size:
		return 1
	}
	return 0
}

// RequirementsByMode compares requirements by mode, serial first.
func RequirementsByMode(r1, r2 *Requirement) int {
	return int(r1.mode) - int(r2.mode)
}

// RequirementsByAge compares requirements by creation order, oldest first.
func RequirementsByAge(r1, r2 *Requirement) int {
	switch {
	case r1.created < r2.created:
		return -1
	case r1.created > r2.created:
		return 1
	}
	return 0
}

// HumanReadableSize returns the given size as a human-readable string.
func HumanReadableSize(size int64) string {
	if size >= 1024 {
		units := []string{"k", "M", "G", "T"}

		for i, d := 0, int64(1024); i < len(units); i, d = i+1, d<<10 {
			if val := size / d; 1 <= val && val < 1024 {
				if fval := float64(size) / float64(d); math.Floor(fval) != fval {
					return strings.TrimRight(fmt.Sprintf("%.3f", fval), "0") + units[i]
				} else {
					return fmt.Sprintf("%d%s", val, units[i])
				}
			}
		}
	}

	return strconv.FormatInt(size, 10)
}

func prettySize(v int64) string {
	return HumanReadableSize(v)
}
