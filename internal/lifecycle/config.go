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
	"time"
)

// Default policy values
// 默认策略值
const (
	// DefaultProbeInterval is the pause between two readiness probes
	// DefaultProbeInterval 是两次就绪探测之间的间隔
	DefaultProbeInterval = 500 * time.Millisecond

	// DefaultProbeTimeout bounds a single management call
	// DefaultProbeTimeout 限制单次管理调用的时长
	DefaultProbeTimeout = 3 * time.Second

	// DefaultGracePeriod is how long a graceful shutdown may take (30 seconds)
	// DefaultGracePeriod 是优雅关闭允许的时长（30秒）
	DefaultGracePeriod = 30 * time.Second

	// DefaultKillTimeout is how long to wait for exit after a forced kill
	// DefaultKillTimeout 是强制终止后等待退出的时长
	DefaultKillTimeout = 5 * time.Second

	// DefaultShutdownRetries is how many times a failed shutdown request is retried
	// DefaultShutdownRetries 是关闭请求失败后的重试次数
	DefaultShutdownRetries = 2
)

// Config holds the timing policy of a Controller
// Config 保存 Controller 的时间策略
type Config struct {
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	GracePeriod     time.Duration
	KillTimeout     time.Duration
	ShutdownRetries int
}

// DefaultConfig returns the default policy
// DefaultConfig 返回默认策略
func DefaultConfig() Config {
	return Config{
		ProbeInterval:   DefaultProbeInterval,
		ProbeTimeout:    DefaultProbeTimeout,
		GracePeriod:     DefaultGracePeriod,
		KillTimeout:     DefaultKillTimeout,
		ShutdownRetries: DefaultShutdownRetries,
	}
}

// Validate checks every duration is positive
// Validate 检查所有时长均为正数
func (c Config) Validate() error {
	if c.ProbeInterval <= 0 {
		return errors.New("probe interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.GracePeriod <= 0 {
		return errors.New("grace period must be positive")
	}
	if c.KillTimeout <= 0 {
		return errors.New("kill timeout must be positive")
	}
	if c.ShutdownRetries < 0 {
		return errors.New("shutdown retries must not be negative")
	}
	return nil
}
