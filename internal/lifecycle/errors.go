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
	"errors"
	"fmt"
)

// Lifecycle errors
// 生命周期错误
var (
	// ErrStartupTimeout indicates the server did not become ready in time
	// ErrStartupTimeout 表示服务器未在规定时间内就绪
	ErrStartupTimeout = errors.New("server startup timed out")

	// ErrStopTimeout indicates the process survived a forced kill
	// ErrStopTimeout 表示进程在强制终止后仍存活
	ErrStopTimeout = errors.New("server stop timed out")

	// ErrInvalidState indicates the operation is not allowed in the current state
	// ErrInvalidState 表示当前状态不允许该操作
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrServerAlreadyRunning indicates a server already answers at the management address
	// ErrServerAlreadyRunning 表示管理地址上已有服务器在运行
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrStartCancelled indicates the caller abandoned the startup wait
	// ErrStartCancelled 表示调用方放弃了启动等待
	ErrStartCancelled = errors.New("server startup cancelled")
)

// EarlyExitError reports a process that exited before becoming ready
// EarlyExitError 表示进程在就绪前退出
type EarlyExitError struct {
	ExitCode int
}

func (e *EarlyExitError) Error() string {
	return fmt.Sprintf("server exited during startup with code %d", e.ExitCode)
}

// ShutdownRequestError wraps a failed graceful shutdown request. It is
// logged and the stop sequence carries on.
// ShutdownRequestError 包装失败的优雅关闭请求，仅记录日志，停止流程继续。
type ShutdownRequestError struct {
	Err error
}

func (e *ShutdownRequestError) Error() string {
	return fmt.Sprintf("graceful shutdown request failed: %v", e.Err)
}

func (e *ShutdownRequestError) Unwrap() error {
	return e.Err
}

func invalidState(op string, s State) error {
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidState, op, s)
}
