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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	logger "github.com/containers/pegrid/pkg/log"
)

var (
	verbose bool
	jsonOut bool
	debug   []string

	log = logrus.StandardLogger()
)

var rootCmd = &cobra.Command{
	Use:   "mss-alloc",
	Short: "Allocate memory for requirements in a PE/MSS/slice grid",
	Long: `mss-alloc loads a grid and a batch of memory requirements from a YAML
file, allocates them and reports where each requirement was placed and how
the grid was partitioned to accommodate them.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringSliceVar(&debug, "debug", nil,
		"Enable debug logging for the given sources (for instance libmss,libmss-details or all)")
}

func setupLogging(_ *cobra.Command, _ []string) error {
	log.SetFormatter(&logrus.TextFormatter{
		PadLevelText: true,
	})
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

func execute() {
	defer logger.Flush()
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// printJSON outputs data as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
