//go:build !windows
// +build !windows

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

package lifecycle

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/management"
	"github.com/seatunnel/serverctl/internal/process"
	"github.com/seatunnel/serverctl/internal/server"
)

// fakeServer emulates the HTTP management interface of a server whose
// readiness is signalled by a marker file
// fakeServer 模拟通过标记文件表示就绪的服务器管理接口
type fakeServer struct {
	marker string
	pid    atomic.Int64
	srv    *httptest.Server
}

func newFakeServer(t *testing.T, marker string) *fakeServer {
	fs := &fakeServer{marker: marker}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var op struct {
			Operation string `json:"operation"`
		}
		_ = json.NewDecoder(r.Body).Decode(&op)
		switch op.Operation {
		case "read-attribute":
			state := "starting"
			if _, err := os.Stat(fs.marker); err == nil {
				state = "running"
			}
			_, _ = w.Write([]byte(`{"outcome":"success","result":"` + state + `"}`))
		case "shutdown":
			if pid := fs.pid.Load(); pid > 0 {
				_ = syscall.Kill(int(pid), syscall.SIGTERM)
			}
			_, _ = w.Write([]byte(`{"outcome":"success"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) conn(t *testing.T) management.ConnectionInfo {
	host, port, err := net.SplitHostPort(fs.srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return management.ConnectionInfo{Protocol: "http-remoting", Host: host, Port: p}
}

func writeJava(t *testing.T, body string) string {
	javaHome := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(javaHome, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(javaHome, "bin", "java"), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return javaHome
}

func runServer(t *testing.T, script string, cfg Config) (*Controller, *process.Handle, *management.HTTPClient, *eventRecorder) {
	t.Helper()
	marker := filepath.Join(t.TempDir(), "ready")
	fs := newFakeServer(t, marker)
	javaHome := writeJava(t, "MARKER="+marker+"\n"+script)

	info, err := server.Of(fs.conn(t), javaHome, t.TempDir(), "", []string{"-Xmx64m"}, "", "", 5*time.Second)
	require.NoError(t, err)
	client, err := management.NewHTTPClient(info.ConnectionInfo(), fs.srv.Client())
	require.NoError(t, err)

	c := NewController(cfg, process.NewLauncher(zap.NewNop(), nil), zap.NewNop())
	rec := &eventRecorder{}
	c.SetEventHandler(rec.handle)

	require.NoError(t, EnsureNotRunning(context.Background(), client, time.Second))
	h, err := c.Start(context.Background(), info)
	require.NoError(t, err)
	fs.pid.Store(int64(h.PID()))
	t.Cleanup(func() {
		_ = h.Kill()
		<-h.Done()
	})

	out := c.AwaitStarted(context.Background(), h, client, info.StartupTimeout())
	require.Equal(t, StateStarted, out.State, "start outcome: %v", out.Err)
	assert.ErrorIs(t, EnsureNotRunning(context.Background(), client, time.Second), ErrServerAlreadyRunning)
	return c, h, client, rec
}

func TestIntegration_StartAndGracefulStop(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 5 * time.Second
	c, h, client, rec := runServer(t, `trap 'exit 0' TERM
sleep 0.2
touch "$MARKER"
echo "server up"
while true; do sleep 0.05; done`, cfg)

	out := c.Stop(context.Background(), h, client)

	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, 0, out.Kills)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, []State{StateNotStarted, StateStarting, StateStarted, StateStopping, StateStopped}, rec.states())
}

func TestIntegration_KillWhenShutdownIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 300 * time.Millisecond
	cfg.KillTimeout = 5 * time.Second
	c, h, client, _ := runServer(t, `trap '' TERM
touch "$MARKER"
while true; do sleep 0.05; done`, cfg)

	out := c.Stop(context.Background(), h, client)

	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, 1, out.Kills)
	assert.Equal(t, 137, out.ExitCode)
}

func TestIntegration_EarlyExit(t *testing.T) {
	fs := newFakeServer(t, filepath.Join(t.TempDir(), "never"))
	javaHome := writeJava(t, `echo "Error: Could not find or load main class" >&2
exit 1`)
	info, err := server.Of(fs.conn(t), javaHome, t.TempDir(), "", nil, "", "", 5*time.Second)
	require.NoError(t, err)
	client, err := management.NewHTTPClient(info.ConnectionInfo(), fs.srv.Client())
	require.NoError(t, err)

	c := NewController(testConfig(), process.NewLauncher(nil, nil), nil)
	h, err := c.Start(context.Background(), info)
	require.NoError(t, err)

	out := c.AwaitStarted(context.Background(), h, client, info.StartupTimeout())

	assert.Equal(t, StateStartFailed, out.State)
	var exitErr *EarlyExitError
	require.ErrorAs(t, out.Err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode)
}
