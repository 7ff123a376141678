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

const (
	// crossPartitionWeight discounts combinations spanning several partitions.
	crossPartitionWeight = 0.8
	// infeasible is the score of a combination which cannot be allocated.
	infeasible = -1.0
)

// resolution is the set of values for each axis of a requirement.
type resolution [axisCount][]int

// resolve picks values for the auto axes of the requirement. Values are
// enumerated like an odometer, the last auto axis turning fastest, and the
// highest scoring combination wins. Ties go to the first one enumerated.
func (m *Manager) resolve(req *Requirement) (resolution, error) {
	var (
		values resolution
		autos  []Axis
		size   = req.AllocationSize()
	)

	for a := AxisPE; a < axisCount; a++ {
		d := req.dims[a]
		if d.NeedsSelection() {
			autos = append(autos, a)
			continue
		}
		values[a] = d.Values(m.grid.AxisSize(a))
	}

	if len(autos) == 0 {
		return values, nil
	}

	var (
		odometer  = make([]int, len(autos))
		best      []int
		bestScore = infeasible
	)

	for {
		for i, a := range autos {
			values[a] = []int{odometer[i]}
		}

		score := m.score(m.grid.crossProduct(values), size)
		if score > bestScore {
			best = append(best[:0], odometer...)
			bestScore = score
		}

		if !m.advance(odometer, autos) {
			break
		}
	}

	if best == nil {
		return values, fmt.Errorf("%w: %s", ErrNoAssignment, req)
	}

	for i, a := range autos {
		values[a] = []int{best[i]}
	}

	log.Debug("resolved %s to PE%v/MSS%v/Slice%v (score %.1f)", req.Scope(),
		values[AxisPE], values[AxisMSS], values[AxisSlice], bestScore)

	return values, nil
}

// advance turns the odometer to the next combination. It returns false
// once every combination has been enumerated.
func (m *Manager) advance(odometer []int, autos []Axis) bool {
	for i := len(odometer) - 1; i >= 0; i-- {
		odometer[i]++
		if odometer[i] < m.grid.AxisSize(autos[i]) {
			return true
		}
		odometer[i] = 0
	}
	return false
}

// score scores allocating size bytes in the given coordinates.
func (m *Manager) score(r Signature, size int64) float64 {
	parts := m.matching(r)

	switch len(parts) {
	case 0:
		return infeasible
	case 1:
		if !parts[0].mem.CanFit(size) {
			return infeasible
		}
		return float64(parts[0].Free())
	}

	minFree := int64(-1)
	for _, p := range parts {
		if !p.mem.CanFit(size) {
			return infeasible
		}
		if free := p.Free(); minFree < 0 || free < minFree {
			minFree = free
		}
	}

	return crossPartitionWeight * float64(minFree)
}
