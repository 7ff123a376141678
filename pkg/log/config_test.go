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

package log

import (
	"testing"

	"github.com/stretchr/testify/require"

	cfgapi "github.com/containers/pegrid/pkg/apis/config/v1alpha1/log"
)

func TestSrcmapParse(t *testing.T) {
	type testCase struct {
		name   string
		value  string
		result srcmap
		str    string
		fail   bool
	}
	for _, tc := range []*testCase{
		{
			name:   "empty",
			value:  "",
			result: srcmap{},
			str:    "",
		},
		{
			name:   "plain sources",
			value:  "libmss,libmss-details",
			result: srcmap{"libmss": true, "libmss-details": true},
			str:    "on:libmss,libmss-details",
		},
		{
			name:   "inherited state",
			value:  "off:a,b,on:c",
			result: srcmap{"a": false, "b": false, "c": true},
			str:    "on:c,off:a,b",
		},
		{
			name:   "all",
			value:  "all,off:noisy",
			result: srcmap{"*": true, "noisy": false},
			str:    "on:*,off:noisy",
		},
		{
			name:  "bad state",
			value: "maybe:a",
			fail:  true,
		},
		{
			name:  "too many colons",
			value: "on:a:b",
			fail:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := srcmap{}
			err := m.parse(tc.value)
			if tc.fail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.result, m)
			require.Equal(t, tc.str, m.String())

			again := srcmap{}
			require.NoError(t, again.parse(m.String()))
			require.Equal(t, m, again)
		})
	}
}

func TestSrcmapEnabled(t *testing.T) {
	m := srcmap{"*": true, "quiet": false}
	require.True(t, m.enabled("anything"))
	require.False(t, m.enabled("quiet"))
	require.False(t, srcmap{}.enabled("anything"))
}

func TestConfigure(t *testing.T) {
	lg := Get("configure-test")
	t.Cleanup(func() {
		require.NoError(t, Configure(&cfgapi.Config{}))
	})

	require.NoError(t, Configure(&cfgapi.Config{Debug: []string{"configure-test"}}))
	require.True(t, lg.DebugEnabled())

	require.NoError(t, Configure(&cfgapi.Config{Debug: []string{"all", "off:configure-test"}}))
	require.False(t, lg.DebugEnabled())
	require.True(t, Get("configure-other").DebugEnabled())

	require.Error(t, Configure(&cfgapi.Config{Debug: []string{"sometimes:x"}}))

	prev := lg.EnableDebug(true)
	require.False(t, prev)
	require.True(t, lg.DebugEnabled())
}
