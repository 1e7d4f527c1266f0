// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package healthcheck

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStarting, "starting"},
		{StatusHealthy, "healthy"},
		{StatusUnhealthy, "unhealthy"},
		{Status(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("HEALTH_CHECK_PORT", "")
	assert.Equal(t, 8090, GetConfigFromEnv().Port)

	t.Setenv("HEALTH_CHECK_PORT", "9090")
	assert.Equal(t, 9090, GetConfigFromEnv().Port)

	t.Setenv("HEALTH_CHECK_PORT", "invalid")
	assert.Equal(t, 8090, GetConfigFromEnv().Port, "invalid port falls back to the default")

	t.Setenv("HEALTH_CHECK_PORT", "99999")
	assert.Equal(t, 8090, GetConfigFromEnv().Port, "out-of-range port falls back to the default")
}

func TestNewServer(t *testing.T) {
	assert.Equal(t, 8090, NewServer(Config{}).port)
	assert.Equal(t, 9090, NewServer(Config{Port: 9090}).port)
}

func TestServer_SetGetStatus(t *testing.T) {
	server := NewServer(Config{})

	assert.Equal(t, StatusStarting, server.GetStatus())

	server.SetStatus(StatusHealthy)
	assert.Equal(t, StatusHealthy, server.GetStatus())

	server.SetStatus(StatusUnhealthy)
	assert.Equal(t, StatusUnhealthy, server.GetStatus())
}

func TestServer_Ready(t *testing.T) {
	server := NewServer(Config{})

	assert.False(t, server.IsReady())
	server.SetReady(true)
	assert.True(t, server.IsReady())
	server.SetReady(false)
	assert.False(t, server.IsReady())
}

func TestProbeEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		ready    bool
		endpoint string
		wantCode int
	}{
		{"healthz starting", StatusStarting, false, "/healthz", http.StatusServiceUnavailable},
		{"healthz healthy", StatusHealthy, false, "/healthz", http.StatusOK},
		{"healthz unhealthy", StatusUnhealthy, false, "/healthz", http.StatusServiceUnavailable},
		{"readyz not ready", StatusHealthy, false, "/readyz", http.StatusServiceUnavailable},
		{"readyz ready", StatusHealthy, true, "/readyz", http.StatusOK},
		{"livez starting", StatusStarting, false, "/livez", http.StatusOK},
		{"livez healthy", StatusHealthy, false, "/livez", http.StatusOK},
		{"livez unhealthy", StatusUnhealthy, false, "/livez", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(Config{})
			server.SetStatus(tt.status)
			server.SetReady(tt.ready)

			req := httptest.NewRequest(http.MethodGet, tt.endpoint, nil)
			rr := httptest.NewRecorder()

			switch tt.endpoint {
			case "/healthz":
				server.healthzHandler(rr, req)
			case "/readyz":
				server.readyzHandler(rr, req)
			case "/livez":
				server.livezHandler(rr, req)
			}

			assert.Equal(t, tt.wantCode, rr.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode == http.StatusOK, resp.Healthy)
		})
	}
}
