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

package management

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ManagementPath is the path of the HTTP management endpoint
// ManagementPath 是 HTTP 管理端点的路径
const ManagementPath = "/management"

const (
	outcomeSuccess = "success"
	maxBodySize    = 1 << 20
)

var (
	// ErrOperationFailed indicates the server answered with a failed outcome
	// ErrOperationFailed 表示服务器返回失败结果
	ErrOperationFailed = errors.New("management operation failed")

	// ErrUnauthorized indicates the credentials were rejected
	// ErrUnauthorized 表示凭据被拒绝
	ErrUnauthorized = errors.New("management access unauthorized")
)

// operation is a DMR operation in its JSON form
type operation struct {
	Operation string   `json:"operation"`
	Name      string   `json:"name,omitempty"`
	Address   []string `json:"address"`
}

type operationResult struct {
	Outcome            string          `json:"outcome"`
	Result             json.RawMessage `json:"result,omitempty"`
	FailureDescription json.RawMessage `json:"failure-description,omitempty"`
}

// HTTPClient implements Client over the HTTP management API.
// HTTPClient 基于 HTTP 管理 API 实现 Client。
type HTTPClient struct {
	conn     ConnectionInfo
	endpoint string
	http     *http.Client
}

// NewHTTPClient creates a client for conn. A nil httpClient uses
// http.DefaultClient; callers bound each call through ctx.
// NewHTTPClient 为 conn 创建客户端。httpClient 为 nil 时使用 http.DefaultClient。
func NewHTTPClient(conn ConnectionInfo, httpClient *http.Client) (*HTTPClient, error) {
	scheme, err := conn.Scheme()
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		conn:     conn,
		endpoint: scheme + "://" + conn.Address() + ManagementPath,
		http:     httpClient,
	}, nil
}

// Endpoint returns the URL operations are posted to
// Endpoint 返回操作提交的 URL
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// ProbeState reads the server-state attribute of the root resource
// ProbeState 读取根资源的 server-state 属性
func (c *HTTPClient) ProbeState(ctx context.Context) (ServerState, error) {
	res, err := c.execute(ctx, operation{
		Operation: "read-attribute",
		Name:      "server-state",
		Address:   []string{},
	})
	if err != nil {
		return "", &ProbeError{Op: "read-attribute", Err: err}
	}

	var state string
	if err := json.Unmarshal(res.Result, &state); err != nil {
		return "", &ProbeError{Op: "read-attribute", Err: fmt.Errorf("unexpected result %s: %w", string(res.Result), err)}
	}
	return ServerState(state), nil
}

// Shutdown issues the shutdown operation on the root resource
// Shutdown 在根资源上执行 shutdown 操作
func (c *HTTPClient) Shutdown(ctx context.Context) error {
	if _, err := c.execute(ctx, operation{Operation: "shutdown", Address: []string{}}); err != nil {
		return &ProbeError{Op: "shutdown", Err: err}
	}
	return nil
}

func (c *HTTPClient) execute(ctx context.Context, op operation) (*operationResult, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.conn.Username != "" {
		req.SetBasicAuth(c.conn.Username, c.conn.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var res operationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unexpected response (%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if res.Outcome != outcomeSuccess {
		return nil, fmt.Errorf("%w: %s", ErrOperationFailed, string(res.FailureDescription))
	}
	return &res, nil
}
