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

	logger "github.com/containers/pegrid/pkg/log"
)

var (
	log     = logger.Get("libmss")
	details = logger.Get("libmss-details")
)

func (m *Manager) DumpConfig(context ...interface{}) {
	prefix := formatPrefix(context...)
	log.Info("%smemory manager for %s, slice capacity %s", prefix,
		m.grid, prettySize(m.capacity))
	if m.noRollback {
		log.Info("%s  failed allocations keep their forks", prefix)
	}
}

func (m *Manager) DumpState(context ...interface{}) {
	prefix := formatPrefix(context...)
	m.DumpRequirements(prefix)
	m.DumpPartitions(prefix)
}

func (m *Manager) DumpRequirements(context ...interface{}) {
	if !details.DebugEnabled() {
		return
	}

	prefix := formatPrefix(context...)

	if len(m.processed) == 0 {
		details.Debug("%s  no requirements", prefix)
		return
	}

	details.Debug("%s  requirements:", prefix)
	for _, req := range SortRequirements(m.processed, nil, RequirementsByAge) {
		details.Debug("%s    - %s", prefix, req.FulfillmentSummary())
	}
}

func (m *Manager) DumpPartitions(context ...interface{}) {
	if !details.DebugEnabled() {
		return
	}

	prefix := formatPrefix(context...)

	details.Debug("%s  partitions:", prefix)
	for i, p := range m.partitions {
		details.Debug("%s   - #%d %s: %d coordinates, free %s, used %s, largest free %s",
			prefix, i, p.sig, p.Size(), prettySize(p.Free()), prettySize(p.Allocated()),
			prettySize(p.LargestFree()))
		for _, b := range p.mem.blocks {
			details.Debug("%s      %s %s", prefix, b.Range, b.ID)
		}
	}
}

func formatPrefix(args ...interface{}) string {
	narg := len(args)
	if narg == 0 {
		return ""
	}

	format, ok := args[0].(string)
	if !ok {
		return "%%(!libmss:Bad-Prefix)"
	}

	if len(args) == 1 {
		return format
	}

	return fmt.Sprintf(format, args[1:]...)
}
