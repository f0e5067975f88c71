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

// Package pidfile records the pid of the supervised server and reports on
// the process it names.
// pidfile 包记录被监管服务器的 pid，并报告该 pid 对应进程的信息。
package pidfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/shirou/gopsutil/v3/process"
)

// FileMode is the permission of written pid files
// FileMode 是写入的 pid 文件权限
const FileMode = 0o644

// ErrNoPIDFile indicates no pid file path is configured
// ErrNoPIDFile 表示未配置 pid 文件路径
var ErrNoPIDFile = errors.New("no pid file configured")

// Write atomically replaces path with pid
// Write 以原子方式将 pid 写入 path
func Write(path string, pid int) error {
	if path == "" {
		return ErrNoPIDFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create pid file directory: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), FileMode); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Read returns the pid stored in path
// Read 返回 path 中保存的 pid
func Read(path string) (int, error) {
	if path == "" {
		return 0, ErrNoPIDFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Remove deletes path; a missing file is not an error
// Remove 删除 path，文件不存在不算错误
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Info identifies the process behind a pid
// Info 标识 pid 对应的进程
type Info struct {
	PID        int
	Running    bool
	Name       string
	Cmdline    string
	CreateTime time.Time
}

// Inspect identifies the process for pid. A pid with no process reports
// Running false without error.
// Inspect 收集 pid 的进程信息，进程不存在时返回 Running 为 false 且无错误。
func Inspect(ctx context.Context, pid int) (*Info, error) {
	info := &Info{PID: pid}
	running, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	if !running {
		return info, nil
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return info, nil
		}
		return nil, err
	}
	info.Running = true

	// Details are best effort; permission errors leave fields empty.
	// 详细信息尽力获取，权限错误时字段留空。
	if name, err := p.NameWithContext(ctx); err == nil {
		info.Name = name
	}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		info.Cmdline = cmdline
	}
	if ms, err := p.CreateTimeWithContext(ctx); err == nil {
		info.CreateTime = time.UnixMilli(ms)
	}
	return info, nil
}

// String renders the process details on one line
func (i *Info) String() string {
	if !i.Running {
		return fmt.Sprintf("pid %d: not running", i.PID)
	}
	return fmt.Sprintf("pid %d: %s, started %s", i.PID, i.Name, i.CreateTime.Format(time.RFC3339))
}
