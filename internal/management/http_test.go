/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package management

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points an HTTPClient at srv
// newTestClient 将 HTTPClient 指向 srv
func newTestClient(t *testing.T, srv *httptest.Server, user, pass string) *HTTPClient {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	c, err := NewHTTPClient(ConnectionInfo{
		Protocol: "http-remoting",
		Host:     host,
		Port:     p,
		Username: user,
		Password: pass,
	}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestServerState_IsRunning(t *testing.T) {
	assert.True(t, StateRunning.IsRunning())
	assert.True(t, StateReloadRequired.IsRunning())
	assert.True(t, StateRestartRequired.IsRunning())
	assert.True(t, ServerState("RUNNING").IsRunning())
	assert.False(t, StateStarting.IsRunning())
	assert.False(t, StateStopping.IsRunning())
	assert.False(t, StateStopped.IsRunning())
	assert.False(t, ServerState("").IsRunning())
}

func TestConnectionInfo_Scheme(t *testing.T) {
	tests := []struct {
		protocol string
		want     string
		wantErr  bool
	}{
		{"", "http", false},
		{"http-remoting", "http", false},
		{"remote+http", "http", false},
		{"https-remoting", "https", false},
		{"remote+https", "https", false},
		{"HTTPS", "https", false},
		{"remote", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			got, err := ConnectionInfo{Protocol: tt.protocol}.Scheme()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownProtocol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectionInfo_AddressDefaults(t *testing.T) {
	assert.Equal(t, "localhost:9990", ConnectionInfo{}.Address())
	assert.Equal(t, "10.0.0.1:19990", ConnectionInfo{Host: "10.0.0.1", Port: 19990}.Address())
}

func TestConnectionInfo_StringHidesPassword(t *testing.T) {
	s := ConnectionInfo{Protocol: "http-remoting", Host: "h", Port: 1, Username: "admin", Password: "secret"}.String()
	assert.Contains(t, s, "admin@h:1")
	assert.NotContains(t, s, "secret")
}

func TestHTTPClient_ProbeState(t *testing.T) {
	var got operation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ManagementPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"outcome":"success","result":"running"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "", "")
	state, err := c.ProbeState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, "read-attribute", got.Operation)
	assert.Equal(t, "server-state", got.Name)
	assert.Empty(t, got.Address)
}

func TestHTTPClient_BasicCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"outcome":"success","result":"starting"}`))
	}))
	defer srv.Close()

	state, err := newTestClient(t, srv, "admin", "pw").ProbeState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStarting, state)

	_, err = newTestClient(t, srv, "", "").ProbeState(context.Background())
	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHTTPClient_FailedOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"outcome":"failed","failure-description":"WFLYCTL0030: No resource"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "", "").ProbeState(context.Background())
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Contains(t, err.Error(), "WFLYCTL0030")
}

func TestHTTPClient_GarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not here</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "", "").ProbeState(context.Background())
	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Equal(t, "read-attribute", probeErr.Op)
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv, "", "")
	srv.Close()

	_, err := c.ProbeState(context.Background())
	var probeErr *ProbeError
	assert.ErrorAs(t, err, &probeErr)
}

func TestHTTPClient_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(t, srv, "", "").ProbeState(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPClient_Shutdown(t *testing.T) {
	var got operation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"outcome":"success"}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv, "", "").Shutdown(context.Background()))
	assert.Equal(t, "shutdown", got.Operation)
}

func TestNewHTTPClient_Endpoint(t *testing.T) {
	c, err := NewHTTPClient(ConnectionInfo{Protocol: "remote+https", Host: "srv", Port: 9993}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://srv:9993/management", c.Endpoint())

	_, err = NewHTTPClient(ConnectionInfo{Protocol: "jmx"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}
