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

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// ExitCodeUnknown is reported while the process is alive or when the exit
// status could not be determined
// ExitCodeUnknown 在进程存活或无法确定退出状态时返回
const ExitCodeUnknown = -1

// Handle is a spawned server process. Exactly one goroutine waits on the
// child; Done is closed once it has been reaped.
// Handle 表示已启动的服务器进程。只有一个 goroutine 等待子进程，回收后关闭 Done。
type Handle struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	drain     *Drain

	done     chan struct{}
	exitCode int
	waitErr  error
}

func newHandle(cmd *exec.Cmd, drain *Drain, startedAt time.Time) *Handle {
	h := &Handle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: startedAt,
		drain:     drain,
		done:      make(chan struct{}),
		exitCode:  ExitCodeUnknown,
	}
	go h.wait()
	return h
}

// wait reaps the child and records its exit status
// wait 回收子进程并记录退出状态
func (h *Handle) wait() {
	err := h.cmd.Wait()
	code := ExitCodeUnknown
	if h.cmd.ProcessState != nil {
		code = exitCodeOf(h.cmd.ProcessState)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A non-zero exit is reported through the code.
		err = nil
	}
	h.exitCode = code
	h.waitErr = err
	close(h.done)
}

// PID returns the process id
// PID 返回进程 ID
func (h *Handle) PID() int { return h.pid }

// StartedAt returns when the process was spawned
// StartedAt 返回进程启动时间
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed after the process has exited and been reaped
// Done 在进程退出并被回收后关闭
func (h *Handle) Done() <-chan struct{} { return h.done }

// Alive reports whether the process has not exited yet
// Alive 报告进程是否尚未退出
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code, or ExitCodeUnknown while alive.
// A process killed by a signal reports 128 plus the signal number on Unix.
// ExitCode 返回退出码，存活时返回 ExitCodeUnknown。
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return ExitCodeUnknown
	}
}

// Err returns the wait error that is not an exit status, if any
// Err 返回非退出状态类的等待错误
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.waitErr
	default:
		return nil
	}
}

// Wait blocks until the process exits or ctx is done
// Wait 阻塞直到进程退出或 ctx 结束
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		return h.exitCode, nil
	case <-ctx.Done():
		return ExitCodeUnknown, ctx.Err()
	}
}

// Kill forcibly terminates the process and its process group.
// Killing an exited process is a no-op.
// Kill 强制终止进程及其进程组，对已退出的进程无操作。
func (h *Handle) Kill() error {
	if !h.Alive() {
		return nil
	}
	err := killProcessGroup(h.cmd.Process)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Drained is closed when both output streams reached end of file
// Drained 在两个输出流都到达 EOF 后关闭
func (h *Handle) Drained() <-chan struct{} {
	return h.drain.Done()
}

// Lines returns how many lines have been drained so far
// Lines 返回目前已排空的行数
func (h *Handle) Lines() int64 {
	return h.drain.Lines()
}
