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

// Partition is a set of coordinates sharing a single memory map.
type Partition struct {
	sig Signature
	mem *SliceMap
}

func newPartition(sig Signature, mem *SliceMap) *Partition {
	return &Partition{
		sig: sig,
		mem: mem,
	}
}

// Signature returns the coordinates of the partition.
func (p *Partition) Signature() Signature {
	return p.sig
}

// Size returns the number of coordinates in the partition.
func (p *Partition) Size() int {
	return p.sig.Size()
}

// Capacity returns the capacity of the memory map of the partition.
func (p *Partition) Capacity() int64 {
	return p.mem.Capacity()
}

// Allocated returns the amount of allocated memory in each coordinate.
func (p *Partition) Allocated() int64 {
	return p.mem.Allocated()
}

// Free returns the amount of free memory in each coordinate.
func (p *Partition) Free() int64 {
	return p.mem.Free()
}

// LargestFree returns the largest free range in each coordinate.
func (p *Partition) LargestFree() int64 {
	return p.mem.LargestFree()
}

// FreeRanges returns the free address ranges of the partition.
func (p *Partition) FreeRanges() []Range {
	return p.mem.FreeRanges()
}

// Blocks returns the allocations of the partition.
func (p *Partition) Blocks() []Block {
	return p.mem.Blocks()
}

// String returns a string representation of the partition.
func (p *Partition) String() string {
	return fmt.Sprintf("partition%s<%d coordinates, %s>", p.sig, p.sig.Size(), p.mem)
}

// split splits the partition by the given signature. It returns the part
// inside and the part outside of the signature, each with its own copy of
// the memory map, or false if the partition is not split by it.
func (p *Partition) split(r Signature) (*Partition, *Partition, bool) {
	in := p.sig.Intersection(r)
	if in.IsEmpty() || in.Equals(p.sig) {
		return nil, nil, false
	}
	out := p.sig.Difference(r)
	return newPartition(in, p.mem.Clone()), newPartition(out, p.mem.Clone()), true
}

// fork splits every partition partially covered by the signature. A split
// partition is replaced in place by its covered part followed by the rest,
// keeping partition order deterministic. It returns true if any partition
// was split.
func (m *Manager) fork(r Signature) bool {
	var (
		parts  = make([]*Partition, 0, len(m.partitions)+1)
		forked = false
	)

	for _, p := range m.partitions {
		in, out, ok := p.split(r)
		if !ok {
			parts = append(parts, p)
			continue
		}
		log.Debug("fork %s into %s and %s", p.sig, in.sig, out.sig)
		parts = append(parts, in, out)
		forked = true
	}

	m.partitions = parts
	return forked
}

// matching returns the partitions intersecting the signature, in order.
func (m *Manager) matching(r Signature) []*Partition {
	var parts []*Partition
	for _, p := range m.partitions {
		if p.sig.Intersects(r) {
			parts = append(parts, p)
		}
	}
	return parts
}

// PartitionOf returns the partition containing the coordinate.
func (m *Manager) PartitionOf(c Coordinate) (*Partition, bool) {
	if !m.grid.Contains(c) {
		return nil, false
	}
	idx := m.grid.Index(c)
	for _, p := range m.partitions {
		if p.sig.Contains(idx) {
			return p, true
		}
	}
	return nil, false
}

// Partitions returns the current partitions in creation order.
func (m *Manager) Partitions() []*Partition {
	return append([]*Partition(nil), m.partitions...)
}

// ForeachPartition calls fn for each partition until fn returns ForeachDone.
func (m *Manager) ForeachPartition(fn func(*Partition) bool) {
	for _, p := range m.partitions {
		if fn(p) == ForeachDone {
			return
		}
	}
}
