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
	"sync"
	"sync/atomic"
	"time"

	"github.com/seatunnel/serverctl/internal/management"
	"github.com/seatunnel/serverctl/internal/process"
	"github.com/seatunnel/serverctl/internal/server"
)

// fakeProcess is a controllable stand-in for a spawned server
// fakeProcess 是可控的已启动服务器替身
type fakeProcess struct {
	pid      int
	killable bool
	done     chan struct{}
	once     sync.Once
	code     atomic.Int32
	kills    atomic.Int32
}

func newFakeProcess(killable bool) *fakeProcess {
	p := &fakeProcess{pid: 4242, killable: killable, done: make(chan struct{})}
	p.code.Store(int32(NoExitCode))
	return p
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code.Store(int32(code))
		close(p.done)
	})
}

func (p *fakeProcess) exitAfter(d time.Duration, code int) {
	time.AfterFunc(d, func() { p.exit(code) })
}

func (p *fakeProcess) PID() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) ExitCode() int {
	select {
	case <-p.done:
		return int(p.code.Load())
	default:
		return NoExitCode
	}
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	if p.killable {
		p.exit(137)
	}
	return nil
}

// fakeClient answers probes from a script and counts calls
// fakeClient 按脚本应答探测并统计调用次数
type fakeClient struct {
	probe     func(ctx context.Context, n int) (management.ServerState, error)
	shutdown  func(ctx context.Context) error
	probes    atomic.Int32
	shutdowns atomic.Int32
}

func (c *fakeClient) ProbeState(ctx context.Context) (management.ServerState, error) {
	n := int(c.probes.Add(1))
	if c.probe == nil {
		return management.StateStarting, nil
	}
	return c.probe(ctx, n)
}

func (c *fakeClient) Shutdown(ctx context.Context) error {
	c.shutdowns.Add(1)
	if c.shutdown == nil {
		return nil
	}
	return c.shutdown(ctx)
}

// readyAfter reports running from probe k+1 on
func readyAfter(k int) func(context.Context, int) (management.ServerState, error) {
	return func(_ context.Context, n int) (management.ServerState, error) {
		if n > k {
			return management.StateRunning, nil
		}
		return management.StateStarting, nil
	}
}

// hangingProbe blocks until ctx is done
func hangingProbe(ctx context.Context, _ int) (management.ServerState, error) {
	<-ctx.Done()
	return "", &management.ProbeError{Op: "read-attribute", Err: ctx.Err()}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.events)+1)
	for i, e := range r.events {
		if i == 0 {
			out = append(out, e.From)
		}
		out = append(out, e.To)
	}
	return out
}

type fakeLauncher struct {
	err   error
	calls atomic.Int32
}

func (l *fakeLauncher) Launch(context.Context, *server.Info) (*process.Handle, error) {
	l.calls.Add(1)
	return nil, l.err
}

func testConfig() Config {
	return Config{
		ProbeInterval:   10 * time.Millisecond,
		ProbeTimeout:    50 * time.Millisecond,
		GracePeriod:     200 * time.Millisecond,
		KillTimeout:     100 * time.Millisecond,
		ShutdownRetries: 1,
	}
}

// newStartingController returns a controller already in STARTING
func newStartingController(cfg Config) (*Controller, *eventRecorder) {
	c := NewController(cfg, &fakeLauncher{}, nil)
	rec := &eventRecorder{}
	c.SetEventHandler(rec.handle)
	c.transition(context.Background(), StateNotStarted, StateStarting, 0, nil)
	return c, rec
}

// newStartedController returns a controller already in STARTED
func newStartedController(cfg Config) (*Controller, *eventRecorder) {
	c, rec := newStartingController(cfg)
	c.transition(context.Background(), StateStarting, StateStarted, 0, nil)
	return c, rec
}
