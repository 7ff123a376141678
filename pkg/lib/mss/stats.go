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

// Stats is a snapshot of the memory state of a Manager.
type Stats struct {
	Partitions     int              `json:"partitions"`
	TotalAllocated int64            `json:"totalAllocated"`
	TotalRequested int64            `json:"totalRequested"`
	PerPartition   []PartitionStats `json:"perPartition"`
}

// PartitionStats is a snapshot of the memory state of a partition. The
// memory figures are per coordinate.
type PartitionStats struct {
	Signature     string  `json:"signature"`
	Coordinates   int     `json:"coordinates"`
	Capacity      int64   `json:"capacity"`
	Free          int64   `json:"free"`
	Allocated     int64   `json:"allocated"`
	LargestFree   int64   `json:"largestFree"`
	Fragmentation float64 `json:"fragmentation"`
}

// Stats returns a snapshot of the current memory state.
func (m *Manager) Stats() *Stats {
	s := &Stats{
		Partitions:     len(m.partitions),
		TotalAllocated: m.TotalAllocatedBytes(),
		TotalRequested: m.TotalRequestedBytes(),
		PerPartition:   make([]PartitionStats, 0, len(m.partitions)),
	}

	for _, p := range m.partitions {
		s.PerPartition = append(s.PerPartition, PartitionStats{
			Signature:     p.sig.String(),
			Coordinates:   p.Size(),
			Capacity:      p.Capacity(),
			Free:          p.Free(),
			Allocated:     p.Allocated(),
			LargestFree:   p.LargestFree(),
			Fragmentation: p.mem.Fragmentation(),
		})
	}

	return s
}
