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

// Manager allocates memory for requirements in the slices of a grid,
// tracking the grid as a set of disjoint partitions.
type Manager struct {
	grid       Grid
	capacity   int64
	partitions []*Partition
	processed  []*Requirement
	collected  []*Requirement
	journal    *journal
	noRollback bool
}

// journal records reversible changes to a Manager during an allocation.
type journal struct {
	partitions []*Partition
	placed     []placement
}

// placement is a block allocated in the map of a partition.
type placement struct {
	p    *Partition
	addr int64
	id   string
}

const (
	// ForeachDone as a return value terminates iteration by a Foreach* function.
	ForeachDone = false
	// ForeachMore as a return value continues iteration by a Foreach* function.
	ForeachMore = !ForeachDone
)

// Option is an opaque option for a Manager.
type Option func(*Manager) error

// WithSliceCapacity sets the capacity of each slice.
func WithSliceCapacity(capacity int64) Option {
	return func(m *Manager) error {
		if capacity <= 0 {
			return fmt.Errorf("invalid slice capacity %d", capacity)
		}
		m.capacity = capacity
		return nil
	}
}

// WithoutForkRollback is an option to keep the partitions forked for an
// allocation which then fails. By default these forks are rolled back.
func WithoutForkRollback() Option {
	return func(m *Manager) error {
		m.noRollback = true
		return nil
	}
}

// New creates a new Manager for the grid and configures it with the
// given options.
func New(grid Grid, options ...Option) (*Manager, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		grid:     grid,
		capacity: DefaultSliceCapacity,
	}

	for _, o := range options {
		if err := o(m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedOption, err)
		}
	}

	m.reset()
	m.DumpConfig()

	return m, nil
}

// Grid returns the grid of the Manager.
func (m *Manager) Grid() Grid {
	return m.grid
}

// SliceCapacity returns the capacity of each slice.
func (m *Manager) SliceCapacity() int64 {
	return m.capacity
}

// Reset drops all allocations, collected and processed requirements,
// returning to a single universal partition.
func (m *Manager) Reset() {
	log.Debug("reset allocations")
	m.reset()
}

func (m *Manager) reset() {
	m.partitions = []*Partition{
		newPartition(m.grid.Universe(), NewSliceMap(m.capacity)),
	}
	m.processed = nil
	m.collected = nil
	m.journal = nil
}

// Allocate tries to allocate memory for the requirement. It returns false
// with a nil error if there is not enough contiguous free memory. It
// returns an error for malformed requirements and if no assignment of the
// auto axes is feasible. On success the requirement is marked fulfilled.
func (m *Manager) Allocate(req *Requirement) (bool, error) {
	if err := req.validate(m.grid); err != nil {
		return false, err
	}

	defer m.validateState("Allocate")

	m.processed = append(m.processed, req)

	return m.allocate(req)
}

func (m *Manager) allocate(req *Requirement) (ok bool, retErr error) {
	m.DumpState("before %s: ", req.ID())

	values, err := m.resolve(req)
	if err != nil {
		log.Debug("failed to resolve %s: %v", req, err)
		return false, err
	}

	if err := m.startJournal(); err != nil {
		return false, err
	}

	defer func() {
		if ok || m.noRollback {
			m.commitJournal()
			return
		}
		if err := m.revertJournal(); err != nil {
			log.Warn("failed to revert journal on error: %v", err)
		}
	}()

	r := m.grid.crossProduct(values)
	m.fork(r)

	var (
		count    = len(m.partitions)
		affected = m.matching(r)
		size     = req.AllocationSize()
		addr     int64
	)

	for _, p := range affected {
		if !p.sig.IsSubsetOf(r) {
			return false, fmt.Errorf("%w: %s only partially covered by %s after fork",
				ErrInternalError, p, r)
		}
	}

	if len(affected) == 1 {
		addr, ok = m.place(affected[0], size, req.ID())
	} else {
		addr, ok = m.placeAcross(affected, size, req.ID())
	}

	if !ok {
		log.Debug("no room for %s in %d partition(s)", req, len(affected))
		return false, nil
	}

	err = req.fulfill(&AllocationDetails{
		Address:    addr,
		PE:         values[AxisPE],
		MSS:        values[AxisMSS],
		Slices:     values[AxisSlice],
		Partitions: count,
	})
	if err != nil {
		return false, err
	}

	log.Debug("allocated %s", req)

	return true, nil
}

// place allocates first fit from a single partition.
func (m *Manager) place(p *Partition, size int64, id string) (int64, bool) {
	addr, ok := p.mem.AllocateSerial(size, id)
	if ok {
		m.journal.place(p, addr, id)
	}
	return addr, ok
}

// placeAcross allocates the first range free in all of the partitions.
func (m *Manager) placeAcross(parts []*Partition, size int64, id string) (int64, bool) {
	free := parts[0].mem.FreeRanges()
	for _, p := range parts[1:] {
		free = IntersectRanges(free, p.mem.FreeRanges())
	}

	addr, ok := FirstFit(free, size)
	if !ok {
		return 0, false
	}

	for _, p := range parts {
		if !p.mem.AllocateAt(addr, size, id) {
			log.Error("internal error: failed to place %s at 0x%x in %s", id, addr, p)
			return 0, false
		}
		m.journal.place(p, addr, id)
	}

	return addr, true
}

// Requirements returns all requirements passed to Allocate, in order.
func (m *Manager) Requirements() []*Requirement {
	return append([]*Requirement(nil), m.processed...)
}

// Summary summarizes the fulfillment of processed requirements.
type Summary struct {
	Total        int
	Fulfilled    int
	Pending      int
	Requirements []*Requirement
}

// Summary returns the fulfillment summary of processed requirements.
func (m *Manager) Summary() *Summary {
	fulfilled := len(SortRequirements(m.processed, FulfilledRequirements))
	return &Summary{
		Total:        len(m.processed),
		Fulfilled:    fulfilled,
		Pending:      len(m.processed) - fulfilled,
		Requirements: m.Requirements(),
	}
}

// TotalAllocatedBytes returns the total allocated memory over all
// coordinates.
func (m *Manager) TotalAllocatedBytes() int64 {
	total := int64(0)
	for _, p := range m.partitions {
		total += p.Allocated() * int64(p.Size())
	}
	return total
}

// TotalRequestedBytes returns the total memory requested by fulfilled
// requirements over all the coordinates they cover. It always equals
// TotalAllocatedBytes.
func (m *Manager) TotalRequestedBytes() int64 {
	total := int64(0)
	for _, req := range m.processed {
		if d := req.details; d != nil {
			total += req.AllocationSize() * int64(d.Coordinates())
		}
	}
	return total
}

func (m *Manager) startJournal() error {
	if m.journal != nil {
		return fmt.Errorf("%w: failed, journal already active", ErrInternalError)
	}

	m.journal = &journal{
		partitions: m.partitions,
	}

	return nil
}

func (m *Manager) commitJournal() {
	m.journal = nil
}

func (m *Manager) revertJournal() error {
	if m.journal == nil {
		return nil
	}

	log.Debug("reverting journal...")

	j := m.journal
	m.journal = nil

	for _, pl := range j.placed {
		if !pl.p.mem.release(pl.addr, pl.id) {
			return fmt.Errorf("%w: revert failed, no block %s at 0x%x in %s",
				ErrInternalError, pl.id, pl.addr, pl.p)
		}
	}
	m.partitions = j.partitions

	m.DumpState("after revert: ")

	return nil
}

func (j *journal) place(p *Partition, addr int64, id string) {
	if j == nil {
		return
	}
	j.placed = append(j.placed, placement{p: p, addr: addr, id: id})
}

// Validate checks the internal consistency of the Manager. Partitions must
// be disjoint, cover the grid, and account for exactly the memory of the
// fulfilled requirements.
func (m *Manager) Validate() error {
	var (
		errs     *multierror.Error
		covered  = newSignature()
		universe = m.grid.Universe()
	)

	for _, p := range m.partitions {
		if p.sig.IsEmpty() {
			errs = multierror.Append(errs, fmt.Errorf("%w: empty partition %s", ErrInternalError, p))
		}
		if covered.Intersects(p.sig) {
			errs = multierror.Append(errs, fmt.Errorf("%w: partition %s overlaps %s",
				ErrInternalError, p.sig, covered.Intersection(p.sig)))
		}
		covered = covered.Union(p.sig)
		if err := p.mem.validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("partition %s: %w", p.sig, err))
		}
	}

	if !covered.Equals(universe) {
		errs = multierror.Append(errs, fmt.Errorf("%w: partitions miss coordinates %s",
			ErrInternalError, universe.Difference(covered)))
	}

	if alloc, req := m.TotalAllocatedBytes(), m.TotalRequestedBytes(); alloc != req {
		errs = multierror.Append(errs, fmt.Errorf("%w: %d bytes allocated for %d bytes requested",
			ErrInternalError, alloc, req))
	}

	return errs.ErrorOrNil()
}

func (m *Manager) validateState(where string) {
	err := m.Validate()
	if err == nil {
		return
	}
	if merr, ok := err.(*multierror.Error); ok {
		for _, e := range merr.Errors {
			log.Error("internal error: %s: %v", where, e)
		}
		return
	}
	log.Error("internal error: %s: %v", where, err)
}
