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

// Package libmss implements memory allocation for the slices of the
// memory subsystems (MSS) of a grid of processing elements (PEs). The
// primary interface to libmss is the Manager type.
//
// # Grid, Coordinates
//
// A Manager is set up with a grid of PEs. Each PE has a fixed number of
// memory subsystems and each MSS has a fixed number of slices. A slice
// is an independently addressable memory of a fixed capacity, by default
// 1 MiB. A (PE, MSS, slice) triplet is a coordinate. Every slice uses the
// same local address space, so the same address refers to a distinct
// physical location at each coordinate.
//
// # Requirements
//
// Memory is allocated using requirements. A requirement has a size, an
// allocation mode and a dimension requirement for each of the three
// axes of the grid. A dimension requirement asks for all values of the
// axis, a specific value, a value picked by the Manager (auto) or, for
// the slice axis, a fixed group of four slices. In serial mode the full
// size is allocated in each affected slice. In parallel mode the data is
// striped over the four slices of a group, so each slice holds a quarter
// of the size.
//
// A fulfilled requirement gets the same address at every coordinate it
// covers. This lets consumers refer to a single replicated buffer by a
// single address.
//
// # Partitions
//
// The Manager divides the coordinate space into partitions. A partition
// is a set of coordinates which share one memory map, IOW they have had
// exactly the same allocations. Partitions are disjoint and together they
// always cover the full grid. Initially there is a single universal
// partition.
//
// When a requirement covers part of a partition, the partition is forked
// into the covered and the uncovered parts, each getting its own copy of
// the memory map. Once forked, the coordinates of the parts can diverge.
//
// # Allocation Algorithm, Resolution
//
// Allocation starts by resolving any auto dimensions. Every combination
// of values for the auto axes is scored. A combination touching a single
// partition scores the free bytes of that partition if the request fits.
// A combination touching multiple partitions scores 80% of the smallest
// free amount among them if the request fits in all of them. This favors
// combinations which avoid forking. The highest scoring combination wins,
// ties going to the first one found. If no combination fits resolution
// fails with ErrNoAssignment.
//
// # Allocation Algorithm, Placement
//
// Once resolved, partitions are forked as necessary. If the requirement
// then covers a single partition, the first fitting free range of it is
// used. If it covers several partitions, their free ranges are intersected
// and the first fitting range of the intersection is used in all of them.
// If placement fails the forks are rolled back, unless rollback has been
// disabled with WithoutForkRollback.
//
// # Batches
//
// Requirements can also be collected then allocated in a single batch.
// Batches are allocated broadest scopes first, then by fewest auto axes,
// decreasing size, and serial before parallel. Allocating broad scopes
// before narrow ones reduces the number of forks.
package libmss
