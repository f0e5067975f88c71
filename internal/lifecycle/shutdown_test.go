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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seatunnel/serverctl/internal/management"
)

func TestStop_GracefulWithoutKill(t *testing.T) {
	c, rec := newStartedController(testConfig())
	proc := newFakeProcess(true)
	client := &fakeClient{shutdown: func(context.Context) error {
		proc.exitAfter(20*time.Millisecond, 0)
		return nil
	}}

	out := c.Stop(context.Background(), proc, client)

	assert.Equal(t, StateStopped, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, 0, out.Kills)
	assert.Equal(t, int32(0), proc.kills.Load())
	assert.Equal(t, int32(1), client.shutdowns.Load())
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, []State{StateNotStarted, StateStarting, StateStarted, StateStopping, StateStopped}, rec.states())
}

func TestStop_KillAfterGracePeriod(t *testing.T) {
	cfg := testConfig()
	c, _ := newStartedController(cfg)
	proc := newFakeProcess(true)

	out := c.Stop(context.Background(), proc, &fakeClient{})

	assert.Equal(t, StateStopped, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, 1, out.Kills)
	assert.Equal(t, int32(1), proc.kills.Load())
	assert.Equal(t, 137, out.ExitCode)
	assert.GreaterOrEqual(t, out.Elapsed, cfg.GracePeriod)
}

func TestStop_FailsWhenProcessSurvivesKill(t *testing.T) {
	cfg := testConfig()
	c, rec := newStartedController(cfg)
	proc := newFakeProcess(false)

	out := c.Stop(context.Background(), proc, &fakeClient{})

	assert.Equal(t, StateStopFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrStopTimeout)
	assert.Equal(t, 1, out.Kills)
	assert.Equal(t, int32(1), proc.kills.Load())
	assert.GreaterOrEqual(t, out.Elapsed, cfg.GracePeriod+cfg.KillTimeout)
	assert.Equal(t, StateStopFailed, c.State())
	assert.Equal(t, StateStopFailed, rec.states()[len(rec.states())-1])
}

func TestStop_ShutdownRequestFailureIsAbsorbed(t *testing.T) {
	c, _ := newStartedController(testConfig())
	proc := newFakeProcess(true)
	proc.exitAfter(80*time.Millisecond, 0)
	client := &fakeClient{shutdown: func(context.Context) error {
		return &management.ProbeError{Op: "shutdown", Err: errors.New("connection reset")}
	}}

	out := c.Stop(context.Background(), proc, client)

	assert.Equal(t, StateStopped, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, 0, out.Kills)
	assert.GreaterOrEqual(t, client.shutdowns.Load(), int32(1))
	assert.LessOrEqual(t, client.shutdowns.Load(), int32(testConfig().ShutdownRetries+1))
}

func TestStop_AlreadyExited(t *testing.T) {
	c, _ := newStartedController(testConfig())
	proc := newFakeProcess(true)
	proc.exit(0)
	client := &fakeClient{}

	out := c.Stop(context.Background(), proc, client)

	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, 0, out.Kills)
	assert.Equal(t, int32(0), client.shutdowns.Load())
}

func TestStop_AfterFailedStart(t *testing.T) {
	c, _ := newStartingController(testConfig())
	proc := newFakeProcess(true)

	start := c.AwaitStarted(context.Background(), proc, &fakeClient{}, 30*time.Millisecond)
	assert.Equal(t, StateStartFailed, start.State)

	stop := c.Stop(context.Background(), proc, &fakeClient{shutdown: func(context.Context) error {
		proc.exit(0)
		return nil
	}})
	assert.Equal(t, StateStopped, stop.State)
}

func TestStop_CancelledContextSkipsGrace(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 10 * time.Second
	c, _ := newStartedController(cfg)
	proc := newFakeProcess(true)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	out := c.Stop(ctx, proc, &fakeClient{})

	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, 1, out.Kills)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStop_InvalidState(t *testing.T) {
	c := NewController(testConfig(), &fakeLauncher{}, nil)

	out := c.Stop(context.Background(), newFakeProcess(true), &fakeClient{})
	assert.ErrorIs(t, out.Err, ErrInvalidState)
	assert.Equal(t, StateNotStarted, out.State)

	c2, _ := newStartedController(testConfig())
	proc := newFakeProcess(true)
	proc.exit(0)
	c2.Stop(context.Background(), proc, &fakeClient{})
	again := c2.Stop(context.Background(), proc, &fakeClient{})
	assert.ErrorIs(t, again.Err, ErrInvalidState)
	assert.Equal(t, StateStopped, again.State)
}

func TestStop_NilClient(t *testing.T) {
	c, _ := newStartedController(testConfig())
	proc := newFakeProcess(true)

	out := c.Stop(context.Background(), proc, nil)
	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, 1, out.Kills)
}
