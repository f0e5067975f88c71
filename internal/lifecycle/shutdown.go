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
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/management"
	"github.com/seatunnel/serverctl/internal/otel_trace"
)

// Stop drives proc to termination.
//
// The graceful shutdown request is best-effort: failures are logged and the
// sequence falls through to waiting. If the process outlives the grace
// period it is killed once; surviving the kill timeout as well ends in
// STOP_FAILED. Cancelling ctx skips the rest of the grace period.
//
// Stop 驱动 proc 终止。优雅关闭请求尽力而为，失败仅记录日志并继续等待。
// 进程在宽限期后仍存活则强杀一次；强杀超时后仍存活则进入 STOP_FAILED。
// 取消 ctx 会跳过剩余的宽限期。
func (c *Controller) Stop(ctx context.Context, proc Process, client management.Client) Outcome {
	ctx, span := otel_trace.Start(ctx, "lifecycle.Stop")
	defer span.End()
	span.SetAttributes(attribute.Int("pid", proc.PID()))

	begin := time.Now()
	from := c.State()
	if !c.transition(ctx, from, StateStopping, proc.PID(), nil) {
		return Outcome{State: from, Err: invalidState("stop", from), ExitCode: NoExitCode}
	}
	log := c.logger.Ctx(ctx)

	if exited(proc) {
		return c.stopped(ctx, proc, begin, 0)
	}

	grace := time.NewTimer(c.cfg.GracePeriod)
	defer grace.Stop()

	reqCtx, cancelReq := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.GracePeriod)
	defer cancelReq()
	go c.requestShutdown(reqCtx, proc, client)

	select {
	case <-proc.Done():
		return c.stopped(ctx, proc, begin, 0)
	case <-grace.C:
		log.Warn("Server did not stop within grace period, killing",
			zap.Int("pid", proc.PID()),
			zap.Duration("grace_period", c.cfg.GracePeriod),
		)
	case <-ctx.Done():
		log.Warn("Stop cancelled, killing server", zap.Int("pid", proc.PID()), zap.Error(ctx.Err()))
	}
	cancelReq()

	if err := proc.Kill(); err != nil {
		log.Error("Failed to kill server", zap.Int("pid", proc.PID()), zap.Error(err))
	}

	killWait := time.NewTimer(c.cfg.KillTimeout)
	defer killWait.Stop()
	select {
	case <-proc.Done():
		return c.stopped(ctx, proc, begin, 1)
	case <-killWait.C:
	}

	span.RecordError(ErrStopTimeout)
	c.transition(ctx, StateStopping, StateStopFailed, proc.PID(), ErrStopTimeout)
	return Outcome{State: StateStopFailed, Err: ErrStopTimeout, ExitCode: NoExitCode, Elapsed: time.Since(begin), Kills: 1}
}

func (c *Controller) stopped(ctx context.Context, proc Process, begin time.Time, kills int) Outcome {
	c.transition(ctx, StateStopping, StateStopped, proc.PID(), nil)
	elapsed := time.Since(begin)
	code := proc.ExitCode()
	c.logger.Ctx(ctx).Info("Server stopped",
		zap.Int("pid", proc.PID()),
		zap.Int("exit_code", code),
		zap.Int("kills", kills),
		zap.Duration("elapsed", elapsed),
	)
	return Outcome{State: StateStopped, ExitCode: code, Elapsed: elapsed, Kills: kills}
}

// requestShutdown sends the shutdown operation, retrying with a constant
// backoff while the process is alive and ctx allows
// requestShutdown 发送 shutdown 操作，在进程存活且 ctx 允许时以固定间隔重试
func (c *Controller) requestShutdown(ctx context.Context, proc Process, client management.Client) {
	if client == nil {
		return
	}
	log := c.logger.Ctx(ctx)

	op := func() error {
		if exited(proc) {
			return nil
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		defer cancel()
		err := client.Shutdown(attemptCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ProbeInterval), uint64(c.cfg.ShutdownRetries)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		log.Debug("Retrying graceful shutdown request", zap.Error(err), zap.Duration("next", next))
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if exited(proc) || errors.Is(err, context.Canceled) {
			return
		}
		log.Warn("Graceful shutdown request failed, waiting for exit", zap.Error(&ShutdownRequestError{Err: err}))
		return
	}
	log.Info("Graceful shutdown requested", zap.Int("pid", proc.PID()))
}
