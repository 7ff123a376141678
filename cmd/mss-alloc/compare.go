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
	"io"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCompareCmd())
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <file>",
		Short: "Compare in-order and batch allocation",
		Long: `The compare command allocates the same batch of requirements twice,
once in file order and once in batch order, and compares the number of
partition forks each ordering needs.

Example:
  mss-alloc compare batch.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

type orderSummary struct {
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Forks      int `json:"forks"`
	Partitions int `json:"partitions"`
}

type compareReport struct {
	InOrder    orderSummary `json:"inOrder"`
	Batch      orderSummary `json:"batch"`
	SavedForks int          `json:"savedForks"`
}

func runCompare(w io.Writer, path string) error {
	report := &compareReport{}

	for _, o := range []struct {
		naive   bool
		summary *orderSummary
	}{
		{naive: true, summary: &report.InOrder},
		{naive: false, summary: &report.Batch},
	} {
		m, result, err := allocate(path, o.naive)
		if err != nil {
			return err
		}
		*o.summary = orderSummary{
			Succeeded:  result.Succeeded(),
			Failed:     result.Failed(),
			Forks:      result.Forks(),
			Partitions: len(m.Partitions()),
		}
	}

	report.SavedForks = report.InOrder.Forks - report.Batch.Forks

	if jsonOut {
		return printJSON(w, report)
	}

	printf(w, "%-10s %10s %10s %10s\n", "ORDER", "SUCCEEDED", "FORKS", "PARTITIONS")
	for _, row := range []struct {
		name string
		s    orderSummary
	}{
		{"in-order", report.InOrder},
		{"batch", report.Batch},
	} {
		printf(w, "%-10s %10d %10d %10d\n", row.name, row.s.Succeeded, row.s.Forks, row.s.Partitions)
	}
	printf(w, "Batch ordering saved %d forks.\n", report.SavedForks)

	return nil
}
