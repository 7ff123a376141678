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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	descPartitionCount = iota
	descPartitionCoordinates
	descPartitionCapacity
	descPartitionAllocated
	descPartitionFree
	descPartitionLargestFree
	descTotalAllocated
	descTotalRequested
	descRequirements
)

var (
	descriptors = []*prometheus.Desc{
		descPartitionCount: prometheus.NewDesc(
			"libmss_partitions",
			"Number of partitions of the grid.",
			nil,
			nil,
		),
		descPartitionCoordinates: prometheus.NewDesc(
			"libmss_partition_coordinates",
			"Number of coordinates in a partition.",
			[]string{
				"partition",
				"signature",
			},
			nil,
		),
		descPartitionCapacity: prometheus.NewDesc(
			"libmss_partition_capacity_bytes",
			"Memory capacity of each coordinate of a partition.",
			[]string{
				"partition",
			},
			nil,
		),
		descPartitionAllocated: prometheus.NewDesc(
			"libmss_partition_allocated_bytes",
			"Amount of allocated memory in each coordinate of a partition.",
			[]string{
				"partition",
			},
			nil,
		),
		descPartitionFree: prometheus.NewDesc(
			"libmss_partition_free_bytes",
			"Amount of free memory in each coordinate of a partition.",
			[]string{
				"partition",
			},
			nil,
		),
		descPartitionLargestFree: prometheus.NewDesc(
			"libmss_partition_largest_free_bytes",
			"Largest free range in each coordinate of a partition.",
			[]string{
				"partition",
			},
			nil,
		),
		descTotalAllocated: prometheus.NewDesc(
			"libmss_allocated_bytes",
			"Total allocated memory over all coordinates.",
			nil,
			nil,
		),
		descTotalRequested: prometheus.NewDesc(
			"libmss_requested_bytes",
			"Total memory requested by fulfilled requirements over all coordinates.",
			nil,
			nil,
		),
		descRequirements: prometheus.NewDesc(
			"libmss_requirements",
			"Number of processed requirements by state.",
			[]string{
				"state",
			},
			nil,
		),
	}
)

type collector struct {
	m *Manager
}

// NewCollector returns a prometheus collector for the state of the Manager.
// The Manager is not safe for concurrent use, so the collector must not be
// gathered while the Manager is being updated.
func NewCollector(m *Manager) prometheus.Collector {
	return &collector{m: m}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	var (
		stats   = c.m.Stats()
		summary = c.m.Summary()
	)

	ch <- prometheus.MustNewConstMetric(
		descriptors[descPartitionCount],
		prometheus.GaugeValue,
		float64(stats.Partitions),
	)

	for i, p := range stats.PerPartition {
		id := strconv.Itoa(i)
		ch <- prometheus.MustNewConstMetric(
			descriptors[descPartitionCoordinates],
			prometheus.GaugeValue,
			float64(p.Coordinates),
			id, p.Signature,
		)
		ch <- prometheus.MustNewConstMetric(
			descriptors[descPartitionCapacity],
			prometheus.GaugeValue,
			float64(p.Capacity),
			id,
		)
		ch <- prometheus.MustNewConstMetric(
			descriptors[descPartitionAllocated],
			prometheus.GaugeValue,
			float64(p.Allocated),
			id,
		)
		ch <- prometheus.MustNewConstMetric(
			descriptors[descPartitionFree],
			prometheus.GaugeValue,
			float64(p.Free),
			id,
		)
		ch <- prometheus.MustNewConstMetric(
			descriptors[descPartitionLargestFree],
			prometheus.GaugeValue,
			float64(p.LargestFree),
			id,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		descriptors[descTotalAllocated],
		prometheus.GaugeValue,
		float64(stats.TotalAllocated),
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descTotalRequested],
		prometheus.GaugeValue,
		float64(stats.TotalRequested),
	)

	ch <- prometheus.MustNewConstMetric(
		descriptors[descRequirements],
		prometheus.GaugeValue,
		float64(summary.Fulfilled),
		Fulfilled.String(),
	)
	ch <- prometheus.MustNewConstMetric(
		descriptors[descRequirements],
		prometheus.GaugeValue,
		float64(summary.Pending),
		Pending.String(),
	)
}
