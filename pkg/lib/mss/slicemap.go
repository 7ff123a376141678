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
	"slices"
)

const (
	// DefaultSliceCapacity is the default capacity of a single slice.
	DefaultSliceCapacity int64 = 1 << 20
)

// Range is a half-open address range [Start, Start+Size).
type Range struct {
	Start int64
	Size  int64
}

// End returns the first address past the range.
func (r Range) End() int64 {
	return r.Start + r.Size
}

// Overlaps checks if the ranges have any address in common.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End() && o.Start < r.End()
}

// String returns a string representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[0x%08x-0x%08x)", r.Start, r.End())
}

// Block is a single allocation in a slice memory map.
type Block struct {
	Range
	ID string
}

// SliceMap tracks allocations in the address space of a slice. A single
// map is shared by all the coordinates of a partition.
type SliceMap struct {
	capacity int64
	blocks   []Block // sorted by start address
}

// NewSliceMap creates an empty map with the given capacity.
func NewSliceMap(capacity int64) *SliceMap {
	return &SliceMap{capacity: capacity}
}

// Capacity returns the size of the address space of the map.
func (m *SliceMap) Capacity() int64 {
	return m.capacity
}

// Blocks returns the allocations of the map in address order.
func (m *SliceMap) Blocks() []Block {
	return slices.Clone(m.blocks)
}

// Allocated returns the total size of allocations.
func (m *SliceMap) Allocated() int64 {
	total := int64(0)
	for _, b := range m.blocks {
		total += b.Size
	}
	return total
}

// Free returns the total amount of unallocated memory.
func (m *SliceMap) Free() int64 {
	return m.capacity - m.Allocated()
}

// LargestFree returns the size of the largest free range.
func (m *SliceMap) LargestFree() int64 {
	largest := int64(0)
	for _, r := range m.FreeRanges() {
		largest = max(largest, r.Size)
	}
	return largest
}

// CanFit checks if an allocation of the given size would fit.
func (m *SliceMap) CanFit(size int64) bool {
	return size > 0 && m.LargestFree() >= size
}

// Fragmentation returns 1 - largest free range / total free memory. A map
// with a single free range, or none, has zero fragmentation.
func (m *SliceMap) Fragmentation() float64 {
	free := m.Free()
	if free <= 0 {
		return 0
	}
	return 1.0 - float64(m.LargestFree())/float64(free)
}

// FreeRanges returns the maximal unallocated ranges in address order.
func (m *SliceMap) FreeRanges() []Range {
	var (
		free = []Range{}
		next = int64(0)
	)

	for _, b := range m.blocks {
		if b.Start > next {
			free = append(free, Range{Start: next, Size: b.Start - next})
		}
		next = max(next, b.End())
	}
	if next < m.capacity {
		free = append(free, Range{Start: next, Size: m.capacity - next})
	}

	return free
}

// AllocateSerial allocates size bytes from the lowest addressed free range
// large enough for it.
func (m *SliceMap) AllocateSerial(size int64, id string) (int64, bool) {
	addr, ok := FirstFit(m.FreeRanges(), size)
	if !ok {
		return 0, false
	}
	m.insert(Block{Range: Range{Start: addr, Size: size}, ID: id})
	return addr, true
}

// AllocateAt allocates size bytes at the given address, if the range is
// inside the map and entirely free.
func (m *SliceMap) AllocateAt(addr, size int64, id string) bool {
	r := Range{Start: addr, Size: size}
	if size <= 0 || addr < 0 || r.End() > m.capacity {
		return false
	}
	for _, b := range m.blocks {
		if b.Overlaps(r) {
			return false
		}
	}
	m.insert(Block{Range: r, ID: id})
	return true
}

// Clone returns a deep copy of the map.
func (m *SliceMap) Clone() *SliceMap {
	return &SliceMap{
		capacity: m.capacity,
		blocks:   slices.Clone(m.blocks),
	}
}

func (m *SliceMap) insert(b Block) {
	idx, _ := slices.BinarySearchFunc(m.blocks, b.Start, func(e Block, start int64) int {
		switch {
		case e.Start < start:
			return -1
		case e.Start > start:
			return 1
		}
		return 0
	})
	m.blocks = slices.Insert(m.blocks, idx, b)
}

// release removes the block starting at the address.
func (m *SliceMap) release(addr int64, id string) bool {
	for i, b := range m.blocks {
		if b.Start == addr && b.ID == id {
			m.blocks = slices.Delete(m.blocks, i, i+1)
			return true
		}
	}
	return false
}

// validate checks that blocks are inside the map and do not overlap.
func (m *SliceMap) validate() error {
	next := int64(0)
	for _, b := range m.blocks {
		if b.Size <= 0 {
			return fmt.Errorf("%w: empty block %s of %s", ErrInternalError, b.Range, b.ID)
		}
		if b.Start < next {
			return fmt.Errorf("%w: overlapping block %s of %s", ErrInternalError, b.Range, b.ID)
		}
		next = b.End()
	}
	if next > m.capacity {
		return fmt.Errorf("%w: block past capacity 0x%x", ErrInternalError, m.capacity)
	}
	return nil
}

// String returns a string representation of the map.
func (m *SliceMap) String() string {
	return fmt.Sprintf("slice map<capacity %s, %d blocks, free %s, largest free %s>",
		prettySize(m.capacity), len(m.blocks), prettySize(m.Free()), prettySize(m.LargestFree()))
}

// IntersectRanges returns the ranges free in both of the given sorted
// range lists.
func IntersectRanges(a, b []Range) []Range {
	var (
		result = []Range{}
		i, j   int
	)

	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End(), b[j].End())
		if start < end {
			result = append(result, Range{Start: start, Size: end - start})
		}
		if a[i].End() < b[j].End() {
			i++
		} else {
			j++
		}
	}

	return result
}

// FirstFit returns the start of the first range in the list large enough
// for size.
func FirstFit(ranges []Range, size int64) (int64, bool) {
	if size <= 0 {
		return 0, false
	}
	for _, r := range ranges {
		if r.Size >= size {
			return r.Start, true
		}
	}
	return 0, false
}
