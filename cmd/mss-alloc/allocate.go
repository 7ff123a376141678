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
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	libmss "github.com/containers/pegrid/pkg/lib/mss"
)

var (
	inOrder bool
	metrics bool
)

func init() {
	cmd := newAllocateCmd()
	cmd.Flags().BoolVar(&inOrder, "in-order", false, "Allocate in file order instead of batch order")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Dump the final state as Prometheus metrics")
	rootCmd.AddCommand(cmd)
}

func newAllocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate <file>",
		Short: "Allocate a batch of requirements",
		Long: `The allocate command loads a grid and a batch of requirements and
allocates them, by default ordering the batch to minimize partition forks.

Example:
  mss-alloc allocate batch.yaml
  mss-alloc allocate batch.yaml --in-order --json
  mss-alloc allocate batch.yaml --metrics --debug libmss`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

type itemReport struct {
	ID               string                    `json:"id"`
	Scope            string                    `json:"scope"`
	Size             int64                     `json:"size"`
	Success          bool                      `json:"success"`
	PartitionsBefore int                       `json:"partitionsBefore"`
	PartitionsAfter  int                       `json:"partitionsAfter"`
	Details          *libmss.AllocationDetails `json:"details,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

type allocateReport struct {
	Order     string        `json:"order"`
	Items     []*itemReport `json:"items"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Forks     int           `json:"forks"`
	Stats     *libmss.Stats `json:"stats"`
}

func newAllocateReport(order string, m *libmss.Manager, result *libmss.BatchResult) *allocateReport {
	r := &allocateReport{
		Order:     order,
		Succeeded: result.Succeeded(),
		Failed:    result.Failed(),
		Forks:     result.Forks(),
		Stats:     m.Stats(),
	}
	for _, item := range result.Items {
		ir := &itemReport{
			ID:               item.Requirement.ID(),
			Scope:            item.Requirement.Scope(),
			Size:             item.Requirement.Size(),
			Success:          item.Success,
			PartitionsBefore: item.PartitionsBefore,
			PartitionsAfter:  item.PartitionsAfter,
			Details:          item.Requirement.Details(),
		}
		if item.Err != nil {
			ir.Error = item.Err.Error()
		}
		r.Items = append(r.Items, ir)
	}
	return r
}

// allocate runs a batch allocation for the configuration in the file.
func allocate(path string, naive bool) (*libmss.Manager, *libmss.BatchResult, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	m, reqs, err := setup(cfg)
	if err != nil {
		return nil, nil, err
	}

	for _, req := range reqs {
		if err := m.Collect(req); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to collect %s", req.ID())
		}
	}

	var result *libmss.BatchResult
	if naive {
		result = m.AllocateInOrder()
	} else {
		result = m.AllocateAll()
	}

	if err := m.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "inconsistent allocation state")
	}

	return m, result, nil
}

func runAllocate(w io.Writer, path string) error {
	order := "batch"
	if inOrder {
		order = "in-order"
	}

	log.Debugf("allocating %s in %s order", path, order)

	m, result, err := allocate(path, inOrder)
	if err != nil {
		return err
	}
	m.DumpState("final")

	if jsonOut {
		if err := printJSON(w, newAllocateReport(order, m, result)); err != nil {
			return err
		}
	} else {
		printAllocation(w, order, m, result)
	}

	if metrics {
		if err := printMetrics(w, m); err != nil {
			return err
		}
	}

	if result.Failed() > 0 {
		log.Warnf("%d of %d requirements could not be allocated", result.Failed(), result.Total())
		return fmt.Errorf("allocation failed for %d requirements", result.Failed())
	}

	return nil
}

func printAllocation(w io.Writer, order string, m *libmss.Manager, result *libmss.BatchResult) {
	printf(w, "Allocation (%s order), grid %s:\n", order, m.Grid())
	for _, item := range result.Items {
		printf(w, "  %s\n", item)
		if verbose {
			printf(w, "    %s\n", item.Requirement.FulfillmentSummary())
		}
	}
	printf(w, "Succeeded: %d/%d, forks: %d\n", result.Succeeded(), result.Total(), result.Forks())

	stats := m.Stats()
	printf(w, "Partitions: %d\n", stats.Partitions)
	for _, p := range stats.PerPartition {
		printf(w, "  %s: %d coordinates, %s free of %s\n", p.Signature, p.Coordinates,
			libmss.HumanReadableSize(p.Free), libmss.HumanReadableSize(p.Capacity))
	}
	printf(w, "Total allocated: %s, requested: %s\n",
		libmss.HumanReadableSize(stats.TotalAllocated), libmss.HumanReadableSize(stats.TotalRequested))
}

func printMetrics(w io.Writer, m *libmss.Manager) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(libmss.NewCollector(m)); err != nil {
		return errors.Wrap(err, "failed to register collector")
	}

	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return errors.Wrap(err, "failed to encode metrics")
		}
	}
	return nil
}
