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

// Package idxset provides immutable sets of small non-negative integer
// indices. The implementation is k8s.io/utils/cpuset, which has nothing
// CPU-specific about it apart from its name.
package idxset

import (
	"fmt"

	"k8s.io/utils/cpuset"
)

// Set is an immutable set of indices.
type Set = cpuset.CPUSet

var (
	// New creates a set of the given indices.
	New = cpuset.New
	// Parse parses a set from its list format (for instance "0-3,7").
	Parse = cpuset.Parse
)

// MustParse panics if parsing the given set string fails.
func MustParse(s string) Set {
	set, err := cpuset.Parse(s)
	if err != nil {
		panic(fmt.Errorf("failed to parse index set %s: %w", s, err))
	}
	return set
}

// Range returns the set of indices in the half-open interval [lo, hi).
func Range(lo, hi int) Set {
	if hi <= lo {
		return New()
	}
	ids := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		ids = append(ids, i)
	}
	return New(ids...)
}
