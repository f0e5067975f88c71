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

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/otel_trace"
	"github.com/seatunnel/serverctl/internal/process"
	"github.com/seatunnel/serverctl/internal/server"
)

// NoExitCode is reported when no exit code applies
// NoExitCode 表示不适用退出码
const NoExitCode = process.ExitCodeUnknown

// Process is the view of a spawned server the controller needs
// Process 是控制器所需的已启动服务器视图
type Process interface {
	PID() int
	Done() <-chan struct{}
	ExitCode() int
	Kill() error
}

// Launcher spawns a server process
// Launcher 启动服务器进程
type Launcher interface {
	Launch(ctx context.Context, info *server.Info) (*process.Handle, error)
}

// Outcome is the result of AwaitStarted or Stop
// Outcome 是 AwaitStarted 或 Stop 的结果
type Outcome struct {
	State    State
	Err      error
	ExitCode int
	Elapsed  time.Duration
	Probes   int
	Kills    int
}

// OK reports whether the operation reached its target state
// OK 报告操作是否到达目标状态
func (o Outcome) OK() bool {
	return o.State == StateStarted || o.State == StateStopped
}

// Event describes one state transition
// Event 描述一次状态转换
type Event struct {
	RunID string
	From  State
	To    State
	PID   int
	Time  time.Time
	Err   error
}

// EventHandler is called synchronously after every transition
// EventHandler 在每次转换后被同步调用
type EventHandler func(Event)

// Controller supervises one server run. The lifecycle state is its only
// mutable shared field and moves by compare-and-swap.
// Controller 监管一次服务器运行，生命周期状态是唯一可变的共享字段，通过 CAS 变更。
type Controller struct {
	id       string
	cfg      Config
	launcher Launcher
	logger   *otelzap.Logger
	state    atomic.Int32

	mu           sync.RWMutex
	eventHandler EventHandler
}

// NewController creates a controller in NOT_STARTED state
// NewController 创建处于 NOT_STARTED 状态的控制器
func NewController(cfg Config, launcher Launcher, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Controller{
		id:       id,
		cfg:      cfg,
		launcher: launcher,
		logger:   otelzap.New(logger.With(zap.String("run_id", id))),
	}
}

// ID returns the run id attached to logs, spans and events
// ID 返回附加到日志、span 和事件上的运行 ID
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle state
// State 返回当前生命周期状态
func (c *Controller) State() State {
	return State(c.state.Load())
}

// SetEventHandler sets the transition callback
// SetEventHandler 设置状态转换回调
func (c *Controller) SetEventHandler(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandler = handler
}

// transition moves from -> to atomically; it fails if another caller got
// there first or the move is not legal
// transition 原子地执行 from -> to；若被其他调用方抢先或转换不合法则失败
func (c *Controller) transition(ctx context.Context, from, to State, pid int, cause error) bool {
	if !CanTransition(from, to) {
		return false
	}
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}

	fields := []zap.Field{
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	}
	if pid > 0 {
		fields = append(fields, zap.Int("pid", pid))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
		c.logger.Ctx(ctx).Warn("Lifecycle state changed", fields...)
	} else {
		c.logger.Ctx(ctx).Info("Lifecycle state changed", fields...)
	}
	trace.SpanFromContext(ctx).AddEvent("state."+to.String(), trace.WithAttributes(
		attribute.String("from", from.String()),
	))

	c.mu.RLock()
	handler := c.eventHandler
	c.mu.RUnlock()
	if handler != nil {
		handler(Event{RunID: c.id, From: from, To: to, PID: pid, Time: time.Now(), Err: cause})
	}
	return true
}

// Start spawns the server described by info and moves to STARTING.
// A launch failure moves to START_FAILED and is returned as is.
// Start 启动 info 描述的服务器并进入 STARTING，启动失败时进入 START_FAILED 并原样返回错误。
func (c *Controller) Start(ctx context.Context, info *server.Info) (*process.Handle, error) {
	ctx, span := otel_trace.Start(ctx, "lifecycle.Start")
	defer span.End()

	if !c.transition(ctx, StateNotStarted, StateStarting, 0, nil) {
		return nil, invalidState("start", c.State())
	}

	c.logger.Ctx(ctx).Info("Starting server", zap.Stringer("server", info))
	h, err := c.launcher.Launch(ctx, info)
	if err != nil {
		span.RecordError(err)
		c.transition(ctx, StateStarting, StateStartFailed, 0, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pid", h.PID()))
	return h, nil
}

func exited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}
