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

package main

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	cfgapi "github.com/containers/pegrid/pkg/apis/config/v1alpha1/grid"
	libmss "github.com/containers/pegrid/pkg/lib/mss"
	logger "github.com/containers/pegrid/pkg/log"
)

// loadConfig reads and validates a configuration file.
func loadConfig(path string) (*cfgapi.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration %q", path)
	}

	cfg := &cfgapi.Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration %q", path)
	}

	cfg.Log.Debug = append(cfg.Log.Debug, debug...)
	if err := logger.Configure(&cfg.Log); err != nil {
		return nil, errors.Wrap(err, "failed to configure logging")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration %q", path)
	}

	log.Debugf("loaded configuration from %q: %d requirements", path, len(cfg.Requirements))

	return cfg, nil
}

// setup creates a manager for the configuration and the requirements to
// allocate in it.
func setup(cfg *cfgapi.Config) (*libmss.Manager, []*libmss.Requirement, error) {
	m, err := cfg.NewManager()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create manager")
	}
	reqs, err := cfg.LibRequirements()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create requirements")
	}
	return m, reqs, nil
}
