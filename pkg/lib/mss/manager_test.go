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

package libmss_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/containers/pegrid/pkg/lib/mss"
)

func newManager(t *testing.T, grid Grid, options ...Option) *Manager {
	m, err := New(grid, options...)
	require.NoError(t, err, "unexpected New() error")
	require.NotNil(t, m, "unexpected nil manager")
	return m
}

func mustAllocate(t *testing.T, m *Manager, req *Requirement) *AllocationDetails {
	ok, err := m.Allocate(req)
	require.NoError(t, err, "unexpected Allocate() error for %s", req)
	require.True(t, ok, "failed to allocate %s", req)
	require.True(t, req.IsFulfilled())
	require.NoError(t, m.Validate(), "inconsistent state after allocating %s", req)
	return req.Details()
}

func TestNew(t *testing.T) {
	m := newManager(t, DefaultGrid(2))
	require.Equal(t, Grid{PEs: 2, MSSPerPE: 4, SlicesPerMSS: 8}, m.Grid())
	require.Equal(t, DefaultSliceCapacity, m.SliceCapacity())
	require.Len(t, m.Partitions(), 1, "expected a single universal partition")
	require.Equal(t, 64, m.Partitions()[0].Size())

	_, err := New(Grid{PEs: 0, MSSPerPE: 4, SlicesPerMSS: 8})
	require.ErrorIs(t, err, ErrInvalidGrid)

	_, err = New(DefaultGrid(1), WithSliceCapacity(0))
	require.ErrorIs(t, err, ErrFailedOption)
}

func TestBasicSerialAllocation(t *testing.T) {
	m := newManager(t, DefaultGrid(2))

	req := NewRequirement("global", 1024, All, All, All)
	d := mustAllocate(t, m, req)

	require.Equal(t, int64(0), d.Address)
	require.Equal(t, []int{0, 1}, d.PE)
	require.Equal(t, []int{0, 1, 2, 3}, d.MSS)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, d.Slices)
	require.Equal(t, 1, d.Partitions)
	require.Len(t, m.Partitions(), 1, "no fork expected for a full grid requirement")

	require.Equal(t, int64(1024*64), m.TotalAllocatedBytes())
	require.Equal(t, m.TotalAllocatedBytes(), m.TotalRequestedBytes())

	d = mustAllocate(t, m, NewRequirement("second", 512, All, All, All))
	require.Equal(t, int64(1024), d.Address)
}

func TestForking(t *testing.T) {
	type testCase struct {
		name       string
		req        *Requirement
		partitions int
		covered    int
	}
	for _, tc := range []*testCase{
		{
			name:       "PE specific",
			req:        NewRequirement("pe0", 1024, Specific(0), All, All),
			partitions: 2,
			covered:    32,
		},
		{
			name:       "MSS specific",
			req:        NewRequirement("mss2", 1024, All, Specific(2), All),
			partitions: 2,
			covered:    16,
		},
		{
			name:       "slice group",
			req:        NewRequirement("group", 100, Specific(0), Specific(0), Group(GroupHigh)),
			partitions: 2,
			covered:    4,
		},
		{
			name:       "single coordinate",
			req:        NewRequirement("single", 64, Specific(1), Specific(3), Specific(7)),
			partitions: 2,
			covered:    1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t, DefaultGrid(2))
			d := mustAllocate(t, m, tc.req)

			require.Equal(t, int64(0), d.Address)
			require.Equal(t, tc.partitions, d.Partitions)
			require.Len(t, m.Partitions(), tc.partitions)

			p := m.Partitions()[0]
			require.Equal(t, tc.covered, p.Size(), "covered part should come first")
			require.Equal(t, tc.req.AllocationSize(), p.Allocated())
			require.Equal(t, int64(0), m.Partitions()[1].Allocated(), "uncovered part should be untouched")
		})
	}
}

func TestSliceGroupCoordinates(t *testing.T) {
	m := newManager(t, DefaultGrid(2))
	d := mustAllocate(t, m, NewRequirement("group", 100, Specific(0), Specific(0), Group(GroupHigh)))
	require.Equal(t, []int{4, 5, 6, 7}, d.Slices)

	p, ok := m.PartitionOf(Coordinate{PE: 0, MSS: 0, Slice: 5})
	require.True(t, ok)
	require.Equal(t, int64(100), p.Allocated())

	p, ok = m.PartitionOf(Coordinate{PE: 0, MSS: 0, Slice: 3})
	require.True(t, ok)
	require.Equal(t, int64(0), p.Allocated())

	_, ok = m.PartitionOf(Coordinate{PE: 2, MSS: 0, Slice: 0})
	require.False(t, ok, "coordinate outside of grid")
}

func TestAutoSelection(t *testing.T) {
	m := newManager(t, DefaultGrid(2))

	d := mustAllocate(t, m, NewRequirement("auto1", 1024, Auto, All, All))
	require.Equal(t, []int{0}, d.PE, "ties should go to the first candidate")

	d = mustAllocate(t, m, NewRequirement("auto2", 1024, Auto, All, All))
	require.Equal(t, []int{1}, d.PE, "the PE with more free memory should win")
	require.Equal(t, int64(0), d.Address)
	require.Len(t, m.Partitions(), 2, "no fork expected for the second auto PE")

	d = mustAllocate(t, m, NewRequirement("auto3", 2048, Auto, Auto, All))
	require.Equal(t, []int{0}, d.PE)
	require.Equal(t, []int{0}, d.MSS)
	require.Equal(t, int64(1024), d.Address)
}

func TestAutoSelectionAcrossPartitions(t *testing.T) {
	m := newManager(t, DefaultGrid(2))
	mustAllocate(t, m, NewRequirement("pe0", 512, Specific(0), All, All))

	req, err := RequirementForScope("pe-group", 1024, ScopePEGroup)
	require.NoError(t, err)

	d := mustAllocate(t, m, req)
	require.Equal(t, []int{0, 1}, d.PE)
	require.Equal(t, []int{0}, d.MSS)
	require.Equal(t, int64(512), d.Address, "address should be free in both PEs")
	require.Equal(t, 4, d.Partitions)
	require.Len(t, m.Partitions(), 4)
}

func TestCrossPartitionAddress(t *testing.T) {
	m := newManager(t, DefaultGrid(2))

	mustAllocate(t, m, NewRequirement("pe0", 4096, Specific(0), All, All))
	mustAllocate(t, m, NewRequirement("pe1-mss1", 1024, Specific(1), Specific(1), All))
	require.Len(t, m.Partitions(), 3)

	req := NewRequirement("global", 2048, All, All, All)
	d := mustAllocate(t, m, req)
	require.Equal(t, int64(4096), d.Address)
	require.Len(t, m.Partitions(), 3, "no fork expected for a full grid requirement")

	m.ForeachPartition(func(p *Partition) bool {
		found := false
		for _, b := range p.Blocks() {
			if b.ID == req.ID() {
				require.Equal(t, d.Address, b.Start, "address differs in %s", p)
				require.Equal(t, int64(2048), b.Size)
				found = true
			}
		}
		require.True(t, found, "allocation missing from %s", p)
		return ForeachMore
	})
}

func TestParallelAllocation(t *testing.T) {
	m := newManager(t, DefaultGrid(2))

	req := NewRequirement("striped", 1024, Specific(1), Specific(0), Group(GroupLow), WithMode(Parallel))
	require.Equal(t, int64(256), req.AllocationSize())

	d := mustAllocate(t, m, req)
	require.Equal(t, int64(0), d.Address)
	require.Equal(t, []int{0, 1, 2, 3}, d.Slices)

	p, ok := m.PartitionOf(Coordinate{PE: 1, MSS: 0, Slice: 2})
	require.True(t, ok)
	require.Equal(t, 4, p.Size())
	require.Equal(t, int64(256), p.Allocated())

	require.Equal(t, int64(1024), m.TotalRequestedBytes())
	require.Equal(t, int64(1024), m.TotalAllocatedBytes())
}

func TestMalformedRequirements(t *testing.T) {
	type testCase struct {
		name string
		req  *Requirement
		errs []error
	}
	for _, tc := range []*testCase{
		{
			name: "zero size",
			req:  NewRequirement("zero", 0, All, All, All),
			errs: []error{ErrInvalidRequirement},
		},
		{
			name: "negative size",
			req:  NewRequirement("negative", -64, All, All, All),
			errs: []error{ErrInvalidRequirement},
		},
		{
			name: "group on PE axis",
			req:  NewRequirement("pe-group", 64, Group(GroupLow), All, All),
			errs: []error{ErrInvalidRequirement, ErrInvalidGroup},
		},
		{
			name: "unknown group",
			req:  NewRequirement("bad-group", 64, All, All, Group(SliceGroup(7))),
			errs: []error{ErrInvalidRequirement, ErrInvalidGroup},
		},
		{
			name: "PE out of range",
			req:  NewRequirement("pe5", 64, Specific(5), All, All),
			errs: []error{ErrInvalidRequirement, ErrInvalidCoordinate},
		},
		{
			name: "unaligned parallel size",
			req:  NewRequirement("unaligned", 1022, Specific(0), Specific(0), Group(GroupLow), WithMode(Parallel)),
			errs: []error{ErrInvalidRequirement, ErrUnalignedParallel},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t, DefaultGrid(2))

			ok, err := m.Allocate(tc.req)
			require.False(t, ok)
			for _, e := range tc.errs {
				require.ErrorIs(t, err, e)
			}
			require.ErrorIs(t, m.Collect(tc.req), tc.errs[0])

			require.Empty(t, m.Requirements(), "malformed requirement recorded")
			require.Empty(t, m.Collected(), "malformed requirement collected")
			require.Len(t, m.Partitions(), 1)
		})
	}
}

func TestGroupOutsideOfSmallGrid(t *testing.T) {
	m := newManager(t, Grid{PEs: 1, MSSPerPE: 1, SlicesPerMSS: 4})

	_, err := m.Allocate(NewRequirement("high", 64, All, All, Group(GroupHigh)))
	require.ErrorIs(t, err, ErrInvalidGroup)

	mustAllocate(t, m, NewRequirement("low", 64, All, All, Group(GroupLow)))
}

func TestResolutionFailure(t *testing.T) {
	m := newManager(t, DefaultGrid(2))
	mustAllocate(t, m, NewRequirement("pe0", 1024, Specific(0), All, All))
	before := m.Stats()

	req := NewRequirement("too-big", 2*DefaultSliceCapacity, Auto, All, All)
	ok, err := m.Allocate(req)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrNoAssignment)
	require.False(t, req.IsFulfilled())
	require.Nil(t, req.Details())

	require.Equal(t, before, m.Stats(), "failed resolution changed state")
	require.Equal(t, 1, m.Summary().Pending)
}

func TestAllocationFailure(t *testing.T) {
	type testCase struct {
		name       string
		options    []Option
		partitions int
	}
	for _, tc := range []*testCase{
		{
			name:       "forks rolled back",
			partitions: 1,
		},
		{
			name:       "forks kept",
			options:    []Option{WithoutForkRollback()},
			partitions: 2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t, DefaultGrid(2), tc.options...)

			req := NewRequirement("too-big", 2*DefaultSliceCapacity, Specific(0), All, All)
			ok, err := m.Allocate(req)
			require.NoError(t, err, "allocation failure should not be an error")
			require.False(t, ok)
			require.False(t, req.IsFulfilled())

			require.Len(t, m.Partitions(), tc.partitions)
			require.Equal(t, int64(0), m.TotalAllocatedBytes())
			require.NoError(t, m.Validate())
		})
	}
}

func TestFragmentedIntersection(t *testing.T) {
	m := newManager(t, DefaultGrid(2), WithSliceCapacity(4096))

	mustAllocate(t, m, NewRequirement("pe0", 2048, Specific(0), All, All))
	mustAllocate(t, m, NewRequirement("pe1", 3072, Specific(1), All, All))
	before := m.Stats()

	ok, err := m.Allocate(NewRequirement("global", 2048, All, All, All))
	require.NoError(t, err)
	require.False(t, ok, "PE1 has no room for a 2k allocation")
	require.Equal(t, before, m.Stats())

	d := mustAllocate(t, m, NewRequirement("global-small", 1024, All, All, All))
	require.Equal(t, int64(3072), d.Address)
}

func TestAlreadyFulfilled(t *testing.T) {
	m := newManager(t, DefaultGrid(1))
	req := NewRequirement("once", 64, All, All, All)
	mustAllocate(t, m, req)

	ok, err := m.Allocate(req)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrAlreadyFulfilled)
	require.ErrorIs(t, m.Collect(req), ErrAlreadyFulfilled)
}

func TestSummaryAndReset(t *testing.T) {
	m := newManager(t, DefaultGrid(1), WithSliceCapacity(1024))

	mustAllocate(t, m, NewRequirement("a", 512, All, All, All))
	ok, err := m.Allocate(NewRequirement("b", 1024, All, All, All))
	require.NoError(t, err)
	require.False(t, ok)

	s := m.Summary()
	require.Equal(t, 2, s.Total)
	require.Equal(t, 1, s.Fulfilled)
	require.Equal(t, 1, s.Pending)
	require.Equal(t, "a", s.Requirements[0].ID())

	m.Reset()
	require.Empty(t, m.Requirements())
	require.Len(t, m.Partitions(), 1)
	require.Equal(t, int64(0), m.TotalAllocatedBytes())
}

func TestStats(t *testing.T) {
	m := newManager(t, DefaultGrid(1), WithSliceCapacity(4096))

	mustAllocate(t, m, NewRequirement("a", 1024, All, All, All))
	mustAllocate(t, m, NewRequirement("b", 1024, All, Specific(0), All))

	s := m.Stats()
	require.Equal(t, 2, s.Partitions)
	require.Equal(t, s.TotalAllocated, s.TotalRequested)

	p0, p1 := s.PerPartition[0], s.PerPartition[1]
	require.Equal(t, 8, p0.Coordinates)
	require.Equal(t, int64(2048), p0.Allocated)
	require.Equal(t, int64(2048), p0.Free)
	require.Equal(t, int64(2048), p0.LargestFree)
	require.Equal(t, 0.0, p0.Fragmentation)

	require.Equal(t, 24, p1.Coordinates)
	require.Equal(t, int64(1024), p1.Allocated)
	require.Equal(t, int64(3072), p1.Free)
	require.Equal(t, int64(4096), p1.Capacity)
}

func TestDeterminism(t *testing.T) {
	run := func() (*Stats, []string) {
		m := newManager(t, DefaultGrid(2), WithSliceCapacity(16384))
		var addrs []string
		for _, req := range randomRequirements(7, 60) {
			if ok, _ := m.Allocate(req); ok {
				addrs = append(addrs, req.FulfillmentSummary())
			}
		}
		return m.Stats(), addrs
	}

	s1, a1 := run()
	s2, a2 := run()
	require.Equal(t, s1, s2)
	require.Equal(t, a1, a2)
}

func TestRandomSequences(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			m := newManager(t, DefaultGrid(2), WithSliceCapacity(8192))

			for _, req := range randomRequirements(seed, 80) {
				partitions := len(m.Partitions())
				ok, err := m.Allocate(req)
				if err != nil {
					require.ErrorIs(t, err, ErrNoAssignment)
				}
				if !ok {
					require.Len(t, m.Partitions(), partitions, "failed allocation left forks behind")
				}
				require.NoError(t, m.Validate())
				require.Equal(t, m.TotalRequestedBytes(), m.TotalAllocatedBytes())
			}

			verifyAddresses(t, m)
		})
	}
}

// verifyAddresses checks that every fulfilled requirement is allocated at
// the same address in every coordinate it covers.
func verifyAddresses(t *testing.T, m *Manager) {
	for _, req := range SortRequirements(m.Requirements(), FulfilledRequirements) {
		d := req.Details()
		for _, pe := range d.PE {
			for _, mss := range d.MSS {
				for _, slice := range d.Slices {
					c := Coordinate{PE: pe, MSS: mss, Slice: slice}
					p, ok := m.PartitionOf(c)
					require.True(t, ok)

					found := false
					for _, b := range p.Blocks() {
						if b.ID == req.ID() {
							require.Equal(t, d.Address, b.Start, "%s at %s", req, c)
							require.Equal(t, req.AllocationSize(), b.Size, "%s at %s", req, c)
							found = true
						}
					}
					require.True(t, found, "%s missing at %s", req, c)
				}
			}
		}
	}
}

func randomRequirements(seed int64, count int) []*Requirement {
	var (
		rng  = rand.New(rand.NewSource(seed))
		reqs = make([]*Requirement, 0, count)
	)

	dimension := func(a Axis, size int) Dimension {
		switch rng.Intn(4) {
		case 0:
			return All
		case 1:
			return Auto
		case 2:
			if a == AxisSlice {
				return Group(SliceGroup(rng.Intn(2)))
			}
			fallthrough
		default:
			return Specific(rng.Intn(size))
		}
	}

	for i := 0; i < count; i++ {
		var (
			pe    = dimension(AxisPE, 2)
			mss   = dimension(AxisMSS, DefaultMSSPerPE)
			slice = dimension(AxisSlice, DefaultSlicesPerMSS)
			size  = int64(4 * (1 + rng.Intn(256)))
			opts  []RequirementOption
		)
		if slice.IsGroup() && rng.Intn(2) == 0 {
			opts = append(opts, WithMode(Parallel))
		}
		reqs = append(reqs, NewRequirement(fmt.Sprintf("req-%d", i), size, pe, mss, slice, opts...))
	}

	return reqs
}
