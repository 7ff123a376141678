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

package grid

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/containers/pegrid/pkg/apis/config/v1alpha1/log"
	libmss "github.com/containers/pegrid/pkg/lib/mss"
)

// Config is the configuration of a grid and a batch of requirements
// to allocate in it.
type Config struct {
	// Grid describes the size of the grid and its slices.
	Grid GridConfig `json:"grid"`
	// Requirements is the batch of requirements to allocate.
	// +optional
	Requirements []RequirementSpec `json:"requirements,omitempty"`
	// +optional
	Log log.Config `json:"log,omitempty"`
}

// GridConfig describes the grid.
type GridConfig struct {
	// PEs is the number of processing elements.
	PEs int `json:"peCount"`
	// MSSPerPE is the number of memory subsystems per PE.
	// +kubebuilder:default=4
	// +optional
	MSSPerPE int `json:"mssPerPE,omitempty"`
	// SlicesPerMSS is the number of slices per memory subsystem.
	// +kubebuilder:default=8
	// +optional
	SlicesPerMSS int `json:"slicesPerMSS,omitempty"`
	// SliceCapacity is the amount of memory in each slice.
	// +optional
	SliceCapacity *resource.Quantity `json:"sliceCapacity,omitempty"`
	// KeepFailedForks keeps partitions forked for allocations that fail.
	// +optional
	KeepFailedForks bool `json:"keepFailedForks,omitempty"`
}

// RequirementSpec describes a single requirement. Either Scope or some
// of the PE, MSS and Slice dimensions can be given. Omitted dimensions
// default to all.
type RequirementSpec struct {
	// ID identifies the requirement. A unique one is generated if omitted.
	// +optional
	ID string `json:"id,omitempty"`
	// Size is the amount of memory to allocate.
	Size resource.Quantity `json:"size"`
	// Scope is a shorthand for the dimensions: one-mss, one-pe, pe-group
	// or full-grid.
	// +optional
	Scope string `json:"scope,omitempty"`
	// +optional
	PE string `json:"pe,omitempty"`
	// +optional
	MSS string `json:"mss,omitempty"`
	// +optional
	Slice string `json:"slice,omitempty"`
	// Mode is either serial or parallel.
	// +kubebuilder:validation:Enum=serial;parallel
	// +optional
	Mode string `json:"mode,omitempty"`
}

// LibGrid returns the grid, with defaults filled in for omitted axes.
func (c *GridConfig) LibGrid() libmss.Grid {
	g := libmss.DefaultGrid(c.PEs)
	if c.MSSPerPE != 0 {
		g.MSSPerPE = c.MSSPerPE
	}
	if c.SlicesPerMSS != 0 {
		g.SlicesPerMSS = c.SlicesPerMSS
	}
	return g
}

// Options returns the manager options for the configuration.
func (c *GridConfig) Options() []libmss.Option {
	var options []libmss.Option
	if c.SliceCapacity != nil {
		options = append(options, libmss.WithSliceCapacity(c.SliceCapacity.Value()))
	}
	if c.KeepFailedForks {
		options = append(options, libmss.WithoutForkRollback())
	}
	return options
}

// NewManager creates a manager for the configured grid.
func (c *Config) NewManager() (*libmss.Manager, error) {
	return libmss.New(c.Grid.LibGrid(), c.Grid.Options()...)
}

// LibRequirement converts the spec to a requirement.
func (r *RequirementSpec) LibRequirement() (*libmss.Requirement, error) {
	var options []libmss.RequirementOption

	if r.Mode != "" {
		mode, err := libmss.ParseMode(r.Mode)
		if err != nil {
			return nil, err
		}
		options = append(options, libmss.WithMode(mode))
	}

	size := r.Size.Value()

	if r.Scope != "" {
		if r.PE != "" || r.MSS != "" || r.Slice != "" {
			return nil, fmt.Errorf("%w: both scope and dimensions given", libmss.ErrInvalidRequirement)
		}
		scope, err := libmss.ParseScope(r.Scope)
		if err != nil {
			return nil, err
		}
		return libmss.RequirementForScope(r.ID, size, scope, options...)
	}

	var dims [3]libmss.Dimension
	for i, str := range []string{r.PE, r.MSS, r.Slice} {
		if str == "" {
			dims[i] = libmss.All
			continue
		}
		d, err := libmss.ParseDimension(str)
		if err != nil {
			return nil, err
		}
		dims[i] = d
	}

	return libmss.NewRequirement(r.ID, size, dims[0], dims[1], dims[2], options...), nil
}

// LibRequirements converts all requirement specs to requirements.
func (c *Config) LibRequirements() ([]*libmss.Requirement, error) {
	var (
		reqs []*libmss.Requirement
		errs *multierror.Error
	)
	for i := range c.Requirements {
		req, err := c.Requirements[i].LibRequirement()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("requirement #%d: %w", i, err))
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, errs.ErrorOrNil()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if err := c.Grid.LibGrid().Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if q := c.Grid.SliceCapacity; q != nil && q.Sign() <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("invalid slice capacity %s", q.String()))
	}

	ids := map[string]int{}
	for i, r := range c.Requirements {
		if r.Size.Sign() <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("requirement #%d: invalid size %s", i, r.Size.String()))
		}
		if r.ID == "" {
			continue
		}
		if prev, ok := ids[r.ID]; ok {
			errs = multierror.Append(errs, fmt.Errorf("requirement #%d: ID %q already used by #%d",
				i, r.ID, prev))
			continue
		}
		ids[r.ID] = i
	}

	if _, err := c.LibRequirements(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}
