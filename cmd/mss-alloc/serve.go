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
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/containers/pegrid/pkg/healthz"
	libmss "github.com/containers/pegrid/pkg/lib/mss"
)

const (
	healthCheckerName = "libmss"
	shutdownTimeout   = 5 * time.Second
)

var (
	listenAddr string
)

func init() {
	cmd := newServeCmd()
	cmd.Flags().StringVar(&listenAddr, "listen", ":8891", "Address to serve metrics and health checks on")
	cmd.Flags().BoolVar(&inOrder, "in-order", false, "Allocate in file order instead of batch order")
	rootCmd.AddCommand(cmd)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Allocate a batch and serve the resulting state",
		Long: `The serve command allocates a batch of requirements, then serves the
resulting allocation state over HTTP: Prometheus metrics on /metrics, a
JSON snapshot on /state and a consistency check on /healthz.

Example:
  mss-alloc serve batch.yaml --listen localhost:8891`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, args[0])
		},
	}
	return cmd
}

// newServeMux sets up the HTTP endpoints for the allocation state.
func newServeMux(m *libmss.Manager) (*http.ServeMux, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(libmss.NewCollector(m)); err != nil {
		return nil, errors.Wrap(err, "failed to register collector")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/state", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := printJSON(w, m.Stats()); err != nil {
			log.Errorf("failed to write state: %v", err)
		}
	})
	healthz.Setup(mux)

	return mux, nil
}

// checkState reports the consistency of the allocation state.
func checkState(m *libmss.Manager) healthz.CheckFn {
	return func() (healthz.Status, error) {
		if err := m.Validate(); err != nil {
			return healthz.NonFunctional, err
		}
		return healthz.Healthy, nil
	}
}

func runServe(ctx context.Context, path string) error {
	m, result, err := allocate(path, inOrder)
	if err != nil {
		return err
	}
	if result.Failed() > 0 {
		log.Warnf("%d of %d requirements could not be allocated", result.Failed(), result.Total())
	}

	mux, err := newServeMux(m)
	if err != nil {
		return err
	}

	healthz.RegisterHealthChecker(healthCheckerName, checkState(m))
	defer healthz.UnregisterHealthChecker(healthCheckerName)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("serving allocation state on %s", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
