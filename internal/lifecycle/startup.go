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
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/management"
	"github.com/seatunnel/serverctl/internal/otel_trace"
)

// AwaitStarted polls client until the server reports a running state, the
// process exits, timeout elapses or ctx is cancelled.
//
// Each iteration checks liveness first, then the deadline, then issues one
// probe bounded by the probe timeout and the remaining time. A process that
// was spawned elsewhere moves NOT_STARTED -> STARTING on entry. Cancelling
// ctx runs the stop sequence and returns its outcome.
//
// AwaitStarted 轮询 client，直到服务器报告运行状态、进程退出、超时或 ctx 被取消。
// 每轮先检查存活，再检查截止时间，然后发起一次受探测超时和剩余时间约束的探测。
// 取消 ctx 会执行停止流程并返回其结果。
func (c *Controller) AwaitStarted(ctx context.Context, proc Process, client management.Client, timeout time.Duration) Outcome {
	ctx, span := otel_trace.Start(ctx, "lifecycle.AwaitStarted")
	defer span.End()
	span.SetAttributes(attribute.Int("pid", proc.PID()), attribute.String("timeout", timeout.String()))

	begin := time.Now()
	c.transition(ctx, StateNotStarted, StateStarting, proc.PID(), nil)
	if s := c.State(); s != StateStarting {
		return Outcome{State: s, Err: invalidState("await startup", s), ExitCode: NoExitCode}
	}

	deadline := begin.Add(timeout)
	probes := 0
	log := c.logger.Ctx(ctx)
	log.Info("Waiting for server to start",
		zap.Int("pid", proc.PID()),
		zap.Duration("timeout", timeout),
	)

	for {
		if exited(proc) {
			code := proc.ExitCode()
			err := &EarlyExitError{ExitCode: code}
			span.RecordError(err)
			return c.finishStartup(ctx, proc, Outcome{State: StateStartFailed, Err: err, ExitCode: code, Elapsed: time.Since(begin), Probes: probes})
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			err := fmt.Errorf("%w after %v", ErrStartupTimeout, timeout)
			span.RecordError(err)
			return c.finishStartup(ctx, proc, Outcome{State: StateStartFailed, Err: err, ExitCode: NoExitCode, Elapsed: time.Since(begin), Probes: probes})
		}

		if ctx.Err() != nil {
			return c.cancelStartup(ctx, proc, client, begin, probes)
		}

		probes++
		if c.probeReady(ctx, proc, client, min(c.cfg.ProbeTimeout, remaining)) {
			elapsed := time.Since(begin)
			out := c.finishStartup(ctx, proc, Outcome{State: StateStarted, ExitCode: NoExitCode, Elapsed: elapsed, Probes: probes})
			if out.State == StateStarted {
				log.Info("Server started",
					zap.Int("pid", proc.PID()),
					zap.Duration("elapsed", elapsed),
					zap.Int("probes", probes),
				)
			}
			return out
		}

		wait := min(c.cfg.ProbeInterval, time.Until(deadline))
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-proc.Done():
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}
}

// finishStartup commits out.State. If a concurrent Stop already moved the
// controller out of STARTING, the state it left is reported instead.
// finishStartup 提交 out.State；若并发的 Stop 已使控制器离开 STARTING，则报告其所处状态。
func (c *Controller) finishStartup(ctx context.Context, proc Process, out Outcome) Outcome {
	if c.transition(ctx, StateStarting, out.State, proc.PID(), out.Err) {
		return out
	}
	s := c.State()
	code := NoExitCode
	if exited(proc) {
		code = proc.ExitCode()
	}
	return Outcome{
		State:    s,
		Err:      invalidState("await startup", s),
		ExitCode: code,
		Elapsed:  out.Elapsed,
		Probes:   out.Probes,
	}
}

// probeReady runs one probe in its own goroutine so process exit and the
// budget end the wait early; an abandoned probe is left to its context
// probeReady 在独立 goroutine 中执行一次探测，进程退出或预算耗尽时提前结束等待
func (c *Controller) probeReady(ctx context.Context, proc Process, client management.Client, budget time.Duration) bool {
	pctx, span := otel_trace.Start(ctx, "lifecycle.probe")
	defer span.End()
	pctx, cancel := context.WithTimeout(pctx, budget)
	defer cancel()

	type result struct {
		state management.ServerState
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		state, err := client.ProbeState(pctx)
		ch <- result{state: state, err: err}
	}()

	log := c.logger.Ctx(ctx)
	select {
	case r := <-ch:
		if r.err != nil {
			log.Debug("Server not ready", zap.Error(r.err))
			return false
		}
		span.SetAttributes(attribute.String("server_state", string(r.state)))
		if !r.state.IsRunning() {
			log.Debug("Server not ready", zap.String("server_state", string(r.state)))
			return false
		}
		return true
	case <-proc.Done():
		return false
	case <-pctx.Done():
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			log.Debug("Readiness probe abandoned", zap.Duration("budget", budget))
		}
		return false
	}
}

// cancelStartup treats caller cancellation as a stop request
// cancelStartup 将调用方取消视为停止请求
func (c *Controller) cancelStartup(ctx context.Context, proc Process, client management.Client, begin time.Time, probes int) Outcome {
	cause := fmt.Errorf("%w: %w", ErrStartCancelled, context.Cause(ctx))
	c.logger.Ctx(ctx).Warn("Startup wait cancelled, stopping server", zap.Error(cause))

	out := c.Stop(context.WithoutCancel(ctx), proc, client)
	out.Err = errors.Join(cause, out.Err)
	out.Elapsed = time.Since(begin)
	out.Probes = probes
	return out
}
