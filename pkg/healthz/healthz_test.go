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

package healthz_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/containers/pegrid/pkg/healthz"
)

func get(t *testing.T, srv *httptest.Server) (int, string) {
	rsp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	return rsp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	mux := http.NewServeMux()
	Setup(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var (
		status = Healthy
		err    error
	)
	RegisterHealthChecker("component", func() (Status, error) { return status, err })
	defer UnregisterHealthChecker("component")

	code, body := get(t, srv)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)

	status, err = Degraded, errors.New("partitions overlap")
	code, body = get(t, srv)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "degraded\ncomponent: partitions overlap\n", body)

	UnregisterHealthChecker("component")
	s, details := Check()
	require.Equal(t, Healthy, s)
	require.Empty(t, details)
}

func TestRegisterTwice(t *testing.T) {
	RegisterHealthChecker("twice", func() (Status, error) { return Healthy, nil })
	defer UnregisterHealthChecker("twice")
	require.Panics(t, func() {
		RegisterHealthChecker("twice", func() (Status, error) { return Healthy, nil })
	})
}
