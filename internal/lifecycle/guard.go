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
	"fmt"
	"time"

	"github.com/seatunnel/serverctl/internal/management"
)

// EnsureNotRunning probes the management address once and fails with
// ErrServerAlreadyRunning if a server there reports a running state.
// An unreachable address counts as not running.
// EnsureNotRunning 对管理地址探测一次，若已有服务器报告运行状态则返回 ErrServerAlreadyRunning。
// 地址不可达视为未运行。
func EnsureNotRunning(ctx context.Context, client management.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := client.ProbeState(ctx)
	if err != nil {
		return nil
	}
	if state.IsRunning() {
		return fmt.Errorf("%w: management interface reports %q", ErrServerAlreadyRunning, state)
	}
	return nil
}
