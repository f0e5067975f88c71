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

// Package management talks to the management interface of a running
// application server.
// management 包负责与运行中应用服务器的管理接口通信。
//
// This package provides:
// 此包提供：
// - ConnectionInfo describing where the management endpoint lives / 描述管理端点位置的 ConnectionInfo
// - Client for probing server state and requesting shutdown / 用于探测服务器状态和请求关闭的 Client
// - HTTPClient speaking the HTTP management API / 使用 HTTP 管理 API 的 HTTPClient
package management

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Default connection values
// 默认连接值
const (
	// DefaultProtocol is the default management protocol
	// DefaultProtocol 是默认的管理协议
	DefaultProtocol = "http-remoting"

	// DefaultHost is the default management host
	// DefaultHost 是默认的管理主机
	DefaultHost = "localhost"

	// DefaultPort is the default management port
	// DefaultPort 是默认的管理端口
	DefaultPort = 9990
)

// ErrUnknownProtocol indicates the management protocol is not supported
// ErrUnknownProtocol 表示不支持该管理协议
var ErrUnknownProtocol = errors.New("unknown management protocol")

// ServerState is the server-state attribute reported by the management interface
// ServerState 是管理接口报告的 server-state 属性
type ServerState string

const (
	StateStarting        ServerState = "starting"
	StateRunning         ServerState = "running"
	StateReloadRequired  ServerState = "reload-required"
	StateRestartRequired ServerState = "restart-required"
	StateStopping        ServerState = "stopping"
	StateStopped         ServerState = "stopped"
)

// IsRunning reports whether the server is fully operational.
// A server that needs a reload or restart still serves requests.
// IsRunning 报告服务器是否完全可用。需要重载或重启的服务器仍在提供服务。
func (s ServerState) IsRunning() bool {
	switch ServerState(strings.ToLower(string(s))) {
	case StateRunning, StateReloadRequired, StateRestartRequired:
		return true
	default:
		return false
	}
}

// ConnectionInfo describes how to reach the management interface.
// Credentials are passed through as given.
// ConnectionInfo 描述如何访问管理接口，凭据按原样透传。
type ConnectionInfo struct {
	Protocol string `json:"protocol" yaml:"protocol"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"-" yaml:"-"`
}

// Address returns host:port of the management endpoint
// Address 返回管理端点的 host:port
func (c ConnectionInfo) Address() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Scheme maps the management protocol onto an HTTP scheme.
// Scheme 将管理协议映射为 HTTP scheme。
func (c ConnectionInfo) Scheme() (string, error) {
	switch strings.ToLower(c.Protocol) {
	case "", "http", "http-remoting", "remote+http":
		return "http", nil
	case "https", "https-remoting", "remote+https":
		return "https", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProtocol, c.Protocol)
	}
}

// String hides the password.
func (c ConnectionInfo) String() string {
	if c.Username == "" {
		return fmt.Sprintf("%s://%s", c.Protocol, c.Address())
	}
	return fmt.Sprintf("%s://%s@%s", c.Protocol, c.Username, c.Address())
}

// Client is the management connection used by the lifecycle controller.
// Both calls must honour ctx cancellation.
// Client 是生命周期控制器使用的管理连接，两个调用都必须响应 ctx 取消。
type Client interface {
	// ProbeState reads the current server state
	// ProbeState 读取当前服务器状态
	ProbeState(ctx context.Context) (ServerState, error)

	// Shutdown asks the server to shut itself down
	// Shutdown 请求服务器自行关闭
	Shutdown(ctx context.Context) error
}

// ProbeError is returned when a management call cannot be completed or the
// server rejects the operation.
// ProbeError 在管理调用无法完成或服务器拒绝操作时返回。
type ProbeError struct {
	Op  string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("management %s failed: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
