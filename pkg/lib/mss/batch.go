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

	"github.com/hashicorp/go-multierror"
)

// BatchItem is the outcome of allocating a single requirement of a batch.
type BatchItem struct {
	Requirement      *Requirement
	Success          bool
	PartitionsBefore int
	PartitionsAfter  int
	Err              error
}

// Forked checks if allocating the item increased the number of partitions.
func (i *BatchItem) Forked() bool {
	return i.PartitionsAfter > i.PartitionsBefore
}

// String returns a string representation of the item.
func (i *BatchItem) String() string {
	var status string
	switch {
	case i.Err != nil:
		status = "error: " + i.Err.Error()
	case !i.Success:
		status = "failed"
	case i.Forked():
		status = fmt.Sprintf("ok, forked %d -> %d", i.PartitionsBefore, i.PartitionsAfter)
	default:
		status = "ok, no fork"
	}
	return i.Requirement.ID() + " (" + HumanReadableSize(i.Requirement.Size()) + "): " + status
}

// BatchResult is the outcome of allocating a batch of requirements.
type BatchResult struct {
	// Items are the per-requirement outcomes in allocation order.
	Items []*BatchItem
}

// Total returns the number of requirements in the batch.
func (r *BatchResult) Total() int {
	return len(r.Items)
}

// Succeeded returns the number of successfully allocated requirements.
func (r *BatchResult) Succeeded() int {
	cnt := 0
	for _, i := range r.Items {
		if i.Success {
			cnt++
		}
	}
	return cnt
}

// Failed returns the number of requirements which were not allocated.
func (r *BatchResult) Failed() int {
	return r.Total() - r.Succeeded()
}

// Forks returns the number of allocations which forked partitions.
func (r *BatchResult) Forks() int {
	cnt := 0
	for _, i := range r.Items {
		if i.Forked() {
			cnt++
		}
	}
	return cnt
}

// Err returns the errors of the batch items combined, or nil.
func (r *BatchResult) Err() error {
	var errs *multierror.Error
	for _, i := range r.Items {
		if i.Err != nil {
			errs = multierror.Append(errs, i.Err)
		}
	}
	return errs.ErrorOrNil()
}

// Collect adds a requirement to the next batch. Malformed requirements
// are rejected here, not when the batch is allocated.
func (m *Manager) Collect(req *Requirement) error {
	if err := req.validate(m.grid); err != nil {
		return err
	}
	for _, r := range m.collected {
		if r == req {
			return fmt.Errorf("%w: %s already collected", ErrInvalidRequirement, req.ID())
		}
	}
	m.collected = append(m.collected, req)
	return nil
}

// Collected returns the requirements collected for the next batch.
func (m *Manager) Collected() []*Requirement {
	return append([]*Requirement(nil), m.collected...)
}

// BatchOrder returns the requirements in the order AllocateAll would
// allocate them.
func BatchOrder(requirements []*Requirement) []*Requirement {
	return SortRequirements(requirements, nil,
		RequirementsByScopeBreadth,
		RequirementsByAutoCount,
		RequirementsByDecreasingSize,
		RequirementsByMode,
	)
}

// AllocateAll allocates all collected requirements, broadest scopes first.
// A failed allocation does not stop the batch. The collected requirements
// are cleared.
func (m *Manager) AllocateAll() *BatchResult {
	return m.allocateBatch(BatchOrder(m.collected))
}

// AllocateInOrder allocates all collected requirements in the order they
// were collected. The collected requirements are cleared.
func (m *Manager) AllocateInOrder() *BatchResult {
	return m.allocateBatch(m.collected)
}

func (m *Manager) allocateBatch(ordered []*Requirement) *BatchResult {
	m.collected = nil

	result := &BatchResult{
		Items: make([]*BatchItem, 0, len(ordered)),
	}

	if len(ordered) == 0 {
		return result
	}

	log.Info("allocating %d requirements...", len(ordered))

	for step, req := range ordered {
		item := &BatchItem{
			Requirement:      req,
			PartitionsBefore: len(m.partitions),
		}

		item.Success, item.Err = m.Allocate(req)
		item.PartitionsAfter = len(m.partitions)
		result.Items = append(result.Items, item)

		log.Debug("  step %d: %s: %s", step+1, req.Scope(), item)
	}

	log.Info("allocated %d/%d requirements, %d forks, %d partitions",
		result.Succeeded(), result.Total(), result.Forks(), len(m.partitions))

	return result
}
