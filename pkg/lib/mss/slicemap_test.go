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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	. "github.com/containers/pegrid/pkg/lib/mss"
)

func TestSliceMapFreeRanges(t *testing.T) {
	type testCase struct {
		name   string
		allocs [][2]int64
		free   []Range
	}
	for _, tc := range []*testCase{
		{
			name: "empty map",
			free: []Range{{Start: 0, Size: 4096}},
		},
		{
			name:   "single block at start",
			allocs: [][2]int64{{0, 1024}},
			free:   []Range{{Start: 1024, Size: 3072}},
		},
		{
			name:   "hole in the middle",
			allocs: [][2]int64{{0, 1024}, {2048, 1024}},
			free:   []Range{{Start: 1024, Size: 1024}, {Start: 3072, Size: 1024}},
		},
		{
			name:   "blocks allocated out of order",
			allocs: [][2]int64{{3072, 1024}, {1024, 512}},
			free: []Range{
				{Start: 0, Size: 1024},
				{Start: 1536, Size: 1536},
			},
		},
		{
			name:   "full map",
			allocs: [][2]int64{{0, 2048}, {2048, 2048}},
			free:   []Range{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := NewSliceMap(4096)
			for _, a := range tc.allocs {
				require.True(t, m.AllocateAt(a[0], a[1], "test"), "AllocateAt(%d, %d)", a[0], a[1])
			}
			if diff := cmp.Diff(tc.free, m.FreeRanges()); diff != "" {
				t.Errorf("unexpected free ranges (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestSliceMapAllocateSerial(t *testing.T) {
	m := NewSliceMap(4096)

	addr, ok := m.AllocateSerial(1024, "a")
	require.True(t, ok)
	require.Equal(t, int64(0), addr)

	addr, ok = m.AllocateSerial(1024, "b")
	require.True(t, ok)
	require.Equal(t, int64(1024), addr)

	require.True(t, m.AllocateAt(3072, 512, "c"))

	_, ok = m.AllocateSerial(1536, "d")
	require.False(t, ok, "no free range of 1536 bytes")

	addr, ok = m.AllocateSerial(512, "e")
	require.True(t, ok)
	require.Equal(t, int64(2048), addr, "first fit")

	_, ok = m.AllocateSerial(0, "zero")
	require.False(t, ok, "zero sized allocation")

	require.Equal(t, int64(3072), m.Allocated())
	require.Equal(t, int64(1024), m.Free())
	require.Equal(t, int64(512), m.LargestFree())
	require.Equal(t, 0.5, m.Fragmentation())
}

func TestSliceMapAllocateAt(t *testing.T) {
	type testCase struct {
		name       string
		addr, size int64
		ok         bool
	}

	m := NewSliceMap(4096)
	require.True(t, m.AllocateAt(1024, 1024, "existing"))

	for _, tc := range []*testCase{
		{name: "overlap at start", addr: 512, size: 1024, ok: false},
		{name: "overlap at end", addr: 2047, size: 16, ok: false},
		{name: "contained", addr: 1100, size: 16, ok: false},
		{name: "past capacity", addr: 4000, size: 128, ok: false},
		{name: "negative address", addr: -16, size: 32, ok: false},
		{name: "zero size", addr: 0, size: 0, ok: false},
		{name: "adjacent before", addr: 0, size: 1024, ok: true},
		{name: "adjacent after", addr: 2048, size: 2048, ok: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.ok, m.AllocateAt(tc.addr, tc.size, tc.name))
		})
	}

	require.Equal(t, int64(0), m.Free())
	require.Equal(t, 0.0, m.Fragmentation())
}

func TestSliceMapClone(t *testing.T) {
	m := NewSliceMap(DefaultSliceCapacity)
	_, ok := m.AllocateSerial(4096, "shared")
	require.True(t, ok)

	c := m.Clone()
	require.Equal(t, m.Blocks(), c.Blocks())

	_, ok = c.AllocateSerial(1024, "clone-only")
	require.True(t, ok)

	require.Len(t, m.Blocks(), 1, "original map modified through clone")
	require.Len(t, c.Blocks(), 2)
	require.Equal(t, DefaultSliceCapacity, c.Capacity())
}

func TestIntersectRanges(t *testing.T) {
	type testCase struct {
		name   string
		a, b   []Range
		result []Range
	}
	for _, tc := range []*testCase{
		{
			name:   "disjoint",
			a:      []Range{{Start: 0, Size: 100}},
			b:      []Range{{Start: 100, Size: 100}},
			result: []Range{},
		},
		{
			name:   "nested",
			a:      []Range{{Start: 0, Size: 1000}},
			b:      []Range{{Start: 100, Size: 100}, {Start: 500, Size: 100}},
			result: []Range{{Start: 100, Size: 100}, {Start: 500, Size: 100}},
		},
		{
			name:   "staggered",
			a:      []Range{{Start: 0, Size: 300}, {Start: 400, Size: 300}},
			b:      []Range{{Start: 200, Size: 300}},
			result: []Range{{Start: 200, Size: 100}, {Start: 400, Size: 100}},
		},
		{
			name:   "empty side",
			a:      []Range{{Start: 0, Size: 300}},
			b:      nil,
			result: []Range{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.result, IntersectRanges(tc.a, tc.b)); diff != "" {
				t.Errorf("unexpected intersection (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestFirstFit(t *testing.T) {
	ranges := []Range{{Start: 0, Size: 64}, {Start: 128, Size: 256}, {Start: 1024, Size: 1024}}

	addr, ok := FirstFit(ranges, 64)
	require.True(t, ok)
	require.Equal(t, int64(0), addr)

	addr, ok = FirstFit(ranges, 200)
	require.True(t, ok)
	require.Equal(t, int64(128), addr)

	addr, ok = FirstFit(ranges, 512)
	require.True(t, ok)
	require.Equal(t, int64(1024), addr)

	_, ok = FirstFit(ranges, 2048)
	require.False(t, ok)
}
