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

// Package server holds the validated description of an application server
// installation and how it should be started.
// server 包保存经过校验的应用服务器安装描述以及启动方式。
package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seatunnel/serverctl/internal/management"
)

// ModulesDirSeparator separates entries of a modules directory list
// ModulesDirSeparator 分隔模块目录列表中的条目
const ModulesDirSeparator = ";"

// DefaultModulesDirName is the modules directory inside the server home
// DefaultModulesDirName 是服务器主目录下的模块目录
const DefaultModulesDirName = "modules"

// ConfigurationError reports an invalid server description. Nothing is
// spawned when it is returned.
// ConfigurationError 表示无效的服务器描述，返回时不会启动任何进程。
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Info is the immutable description of a server to supervise.
// Slices are copied on the way in and on the way out.
// Info 是待监管服务器的不可变描述，切片在传入和传出时都会复制。
type Info struct {
	conn           management.ConnectionInfo
	javaHome       string
	serverHome     string
	modulesDirs    []string
	jvmArgs        []string
	serverConfig   string
	propertiesFile string
	startupTimeout time.Duration
}

// Of validates the inputs and builds an Info.
// An empty modulesDir means <serverHome>/modules. Otherwise the value is
// split on ";" keeping order and duplicates.
// Of 校验输入并构建 Info。modulesDir 为空时使用 <serverHome>/modules，
// 否则按 ";" 拆分，保持顺序并保留重复项。
func Of(
	conn management.ConnectionInfo,
	javaHome string,
	serverHome string,
	modulesDir string,
	jvmArgs []string,
	serverConfig string,
	propertiesFile string,
	startupTimeout time.Duration,
) (*Info, error) {
	if serverHome == "" {
		return nil, &ConfigurationError{Field: "serverHome", Reason: "must be set"}
	}
	st, err := os.Stat(serverHome)
	if err != nil {
		return nil, &ConfigurationError{Field: "serverHome", Reason: err.Error()}
	}
	if !st.IsDir() {
		return nil, &ConfigurationError{Field: "serverHome", Reason: serverHome + " is not a directory"}
	}
	if startupTimeout <= 0 {
		return nil, &ConfigurationError{Field: "startupTimeout", Reason: fmt.Sprintf("must be positive, got %v", startupTimeout)}
	}

	var args []string
	if len(jvmArgs) > 0 {
		args = append([]string(nil), jvmArgs...)
	}

	return &Info{
		conn:           conn,
		javaHome:       javaHome,
		serverHome:     serverHome,
		modulesDirs:    SplitModulesDir(serverHome, modulesDir),
		jvmArgs:        args,
		serverConfig:   serverConfig,
		propertiesFile: propertiesFile,
		startupTimeout: startupTimeout,
	}, nil
}

// SplitModulesDir turns a modules directory setting into its ordered list.
// Non-empty segments are cleaned; nothing is trimmed or de-duplicated.
// SplitModulesDir 将模块目录设置转换为有序列表。
func SplitModulesDir(serverHome, modulesDir string) []string {
	if modulesDir == "" {
		return []string{filepath.Join(serverHome, DefaultModulesDirName)}
	}
	parts := strings.Split(modulesDir, ModulesDirSeparator)
	for i, p := range parts {
		if p != "" {
			parts[i] = filepath.Clean(p)
		}
	}
	return parts
}

func (i *Info) ConnectionInfo() management.ConnectionInfo { return i.conn }

// JavaHome is empty when the ambient Java runtime should be used
// JavaHome 为空时使用环境中的 Java 运行时
func (i *Info) JavaHome() string { return i.javaHome }

func (i *Info) ServerHome() string { return i.serverHome }

// ModulesDirs returns a copy of the module search path, never empty
// ModulesDirs 返回模块搜索路径的副本，永不为空
func (i *Info) ModulesDirs() []string {
	return append([]string(nil), i.modulesDirs...)
}

// JVMArgs returns a copy of the extra JVM arguments
// JVMArgs 返回额外 JVM 参数的副本
func (i *Info) JVMArgs() []string {
	if len(i.jvmArgs) == 0 {
		return nil
	}
	return append([]string(nil), i.jvmArgs...)
}

func (i *Info) ServerConfig() string { return i.serverConfig }

func (i *Info) PropertiesFile() string { return i.propertiesFile }

func (i *Info) StartupTimeout() time.Duration { return i.startupTimeout }

// String returns a string representation of the info (for debugging)
// String 返回信息的字符串表示（用于调试）
func (i *Info) String() string {
	return fmt.Sprintf(
		"ServerInfo{ServerHome: %s, JavaHome: %s, ModulesDirs: %v, ServerConfig: %s, StartupTimeout: %v, Management: %s}",
		i.serverHome,
		i.javaHome,
		i.modulesDirs,
		i.serverConfig,
		i.startupTimeout,
		i.conn,
	)
}
