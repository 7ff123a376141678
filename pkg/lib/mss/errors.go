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

import "fmt"

var (
	ErrFailedOption       = fmt.Errorf("libmss: failed to apply option")
	ErrInvalidGrid        = fmt.Errorf("libmss: invalid grid")
	ErrInvalidDimension   = fmt.Errorf("libmss: invalid dimension")
	ErrInvalidMode        = fmt.Errorf("libmss: invalid allocation mode")
	ErrInvalidScope       = fmt.Errorf("libmss: invalid resource scope")
	ErrInvalidRequirement = fmt.Errorf("libmss: invalid memory requirement")
	ErrInvalidGroup       = fmt.Errorf("libmss: invalid group reference")
	ErrInvalidCoordinate  = fmt.Errorf("libmss: invalid coordinate")
	ErrUnalignedParallel  = fmt.Errorf("libmss: parallel size not divisible by group width")
	ErrAlreadyFulfilled   = fmt.Errorf("libmss: requirement already fulfilled")
	ErrNoAssignment       = fmt.Errorf("libmss: no feasible coordinate assignment")
	ErrInternalError      = fmt.Errorf("libmss: internal error")
)
