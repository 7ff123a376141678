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
	"encoding/json"
	"fmt"
	"strings"
)

// Scope is a resource scope declared by a kernel or a buffer, to be
// translated into a requirement.
type Scope int

const (
	// ScopeOneMSS is a single MSS of a single PE.
	ScopeOneMSS Scope = iota
	// ScopeOnePE is every MSS of a single PE.
	ScopeOnePE
	// ScopePEGroup is the same MSS on every PE.
	ScopePEGroup
	// ScopeFullGrid is every MSS of every PE.
	ScopeFullGrid
)

var (
	scopeNames = map[Scope]string{
		ScopeOneMSS:   "one-mss",
		ScopeOnePE:    "one-pe",
		ScopePEGroup:  "pe-group",
		ScopeFullGrid: "full-grid",
	}
	namedScopes = func() map[string]Scope {
		m := make(map[string]Scope, len(scopeNames))
		for s, name := range scopeNames {
			m[name] = s
		}
		return m
	}()
)

// ParseScope parses a resource scope name.
func ParseScope(str string) (Scope, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(str)), "_", "-")
	if s, ok := namedScopes[name]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidScope, str)
}

// String returns the name of the scope.
func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("%%!(libmss:Bad-Scope %d)", s)
}

// Dimensions returns the PE, MSS and slice requirements for the scope.
// Every scope covers all slices of the memory subsystems it uses.
func (s Scope) Dimensions() (pe, mss, slice Dimension, err error) {
	switch s {
	case ScopeOneMSS:
		return Auto, Auto, All, nil
	case ScopeOnePE:
		return Auto, All, All, nil
	case ScopePEGroup:
		return All, Auto, All, nil
	case ScopeFullGrid:
		return All, All, All, nil
	}
	return All, All, All, fmt.Errorf("%w: %d", ErrInvalidScope, s)
}

// MarshalJSON is the json.Marshaller for Scope.
func (s Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON is the json.Unmarshaller for Scope.
func (s *Scope) UnmarshalJSON(data []byte) error {
	str := ""
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	scope, err := ParseScope(str)
	if err != nil {
		return err
	}
	*s = scope
	return nil
}

// RequirementForScope creates a requirement for the given resource scope.
func RequirementForScope(id string, size int64, scope Scope, options ...RequirementOption) (*Requirement, error) {
	pe, mss, slice, err := scope.Dimensions()
	if err != nil {
		return nil, err
	}
	return NewRequirement(id, size, pe, mss, slice, options...), nil
}
