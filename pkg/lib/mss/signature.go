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
	"github.com/containers/pegrid/pkg/utils/idxset"
)

// Signature is an immutable set of coordinates, identified by their
// linear grid index. The signature of a partition is its identity.
type Signature struct {
	set idxset.Set
}

func newSignature(ids ...int) Signature {
	return Signature{set: idxset.New(ids...)}
}

func signatureRange(lo, hi int) Signature {
	return Signature{set: idxset.Range(lo, hi)}
}

// Size returns the number of coordinates in the signature.
func (s Signature) Size() int {
	return s.set.Size()
}

// IsEmpty checks if the signature has no coordinates.
func (s Signature) IsEmpty() bool {
	return s.set.IsEmpty()
}

// Contains checks if the signature contains the coordinate with the index.
func (s Signature) Contains(idx int) bool {
	return s.set.Contains(idx)
}

// Equals checks if the signatures have the same coordinates.
func (s Signature) Equals(o Signature) bool {
	return s.set.Equals(o.set)
}

// IsSubsetOf checks if every coordinate of s is in o.
func (s Signature) IsSubsetOf(o Signature) bool {
	return s.set.IsSubsetOf(o.set)
}

// Intersects checks if s and o have any coordinate in common.
func (s Signature) Intersects(o Signature) bool {
	return !s.set.Intersection(o.set).IsEmpty()
}

// Intersection returns the coordinates in both s and o.
func (s Signature) Intersection(o Signature) Signature {
	return Signature{set: s.set.Intersection(o.set)}
}

// Difference returns the coordinates in s but not in o.
func (s Signature) Difference(o Signature) Signature {
	return Signature{set: s.set.Difference(o.set)}
}

// Union returns the coordinates in either s or o.
func (s Signature) Union(o Signature) Signature {
	return Signature{set: s.set.Union(o.set)}
}

// Indices returns the sorted coordinate indices of the signature.
func (s Signature) Indices() []int {
	return s.set.List()
}

// String returns the canonical list format of the signature indices.
func (s Signature) String() string {
	return "{" + s.set.String() + "}"
}
