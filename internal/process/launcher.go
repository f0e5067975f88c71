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

// Package process spawns the application server JVM and owns the child
// process until it has been reaped.
// process 包负责启动应用服务器 JVM，并在子进程被回收前持有它。
//
// This package provides:
// 此包提供：
// - Command line derivation from a server description / 根据服务器描述生成命令行
// - Launcher spawning the server in its own process group / 在独立进程组中启动服务器的 Launcher
// - Handle exposing pid, exit code and kill / 提供 pid、退出码和强杀的 Handle
// - Drain forwarding stdout and stderr line by line / 逐行转发 stdout 和 stderr 的 Drain
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/server"
)

const (
	// ModulesJar is the bootstrap jar inside the server home
	// ModulesJar 是服务器主目录下的引导 jar
	ModulesJar = "jboss-modules.jar"

	// MainModule is the module started by the bootstrap jar
	// MainModule 是引导 jar 启动的模块
	MainModule = "org.jboss.as.standalone"

	// EnvJavaHome and EnvServerHome are exported to the server process
	// EnvJavaHome 和 EnvServerHome 会导出给服务器进程
	EnvJavaHome   = "JAVA_HOME"
	EnvServerHome = "JBOSS_HOME"
)

// ErrJavaNotFound indicates no Java executable could be resolved
// ErrJavaNotFound 表示无法解析 Java 可执行文件
var ErrJavaNotFound = errors.New("java executable not found")

// LaunchError is returned when the server process cannot be spawned.
// It is never retried.
// LaunchError 在无法启动服务器进程时返回，不会重试。
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	if e.Executable == "" {
		return fmt.Sprintf("failed to launch server: %v", e.Err)
	}
	return fmt.Sprintf("failed to launch server with %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// CommandSpec is the fully derived command for a server
// CommandSpec 是为服务器完整推导出的命令
type CommandSpec struct {
	Executable string
	Args       []string
	Dir        string
	Env        []string
}

// String renders the command line for logging
// String 渲染命令行用于日志
func (s CommandSpec) String() string {
	return s.Executable + " " + strings.Join(s.Args, " ")
}

// javaBinary returns the platform name of the java launcher
func javaBinary() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

// ResolveJava finds the java executable. An empty javaHome falls back to
// $JAVA_HOME and then to java on PATH.
// ResolveJava 查找 java 可执行文件。javaHome 为空时依次回退到 $JAVA_HOME 和 PATH 中的 java。
func ResolveJava(javaHome string) (string, error) {
	if javaHome != "" {
		return filepath.Join(javaHome, "bin", javaBinary()), nil
	}
	if env := os.Getenv(EnvJavaHome); env != "" {
		return filepath.Join(env, "bin", javaBinary()), nil
	}
	path, err := exec.LookPath(javaBinary())
	if err != nil {
		return "", fmt.Errorf("%w: set javaHome or %s: %v", ErrJavaNotFound, EnvJavaHome, err)
	}
	return path, nil
}

// BuildCommand derives the command line, working directory and environment
// used to start info.
// BuildCommand 推导启动 info 所需的命令行、工作目录和环境变量。
func BuildCommand(info *server.Info) (*CommandSpec, error) {
	java, err := ResolveJava(info.JavaHome())
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	home := info.ServerHome()
	modulePath := strings.Join(info.ModulesDirs(), string(os.PathListSeparator))
	homeProp := "-Djboss.home.dir=" + home

	args := []string{"-Djboss.modules.path=" + modulePath}
	args = append(args, info.JVMArgs()...)
	args = append(args,
		homeProp,
		"-jar", filepath.Join(home, ModulesJar),
		"-mp", modulePath,
		MainModule,
		homeProp,
	)
	if cfg := info.ServerConfig(); cfg != "" {
		args = append(args, "-c", cfg)
	}
	if props := info.PropertiesFile(); props != "" {
		args = append(args, "-P", props)
	}

	env := os.Environ()
	if info.JavaHome() != "" {
		env = append(env, fmt.Sprintf("%s=%s", EnvJavaHome, info.JavaHome()))
	}
	env = append(env, fmt.Sprintf("%s=%s", EnvServerHome, home))

	return &CommandSpec{
		Executable: java,
		Args:       args,
		Dir:        home,
		Env:        env,
	}, nil
}

// Launcher spawns server processes
// Launcher 启动服务器进程
type Launcher struct {
	logger *zap.Logger
	sink   LineSink
}

// NewLauncher creates a Launcher. A nil sink logs every drained line
// through logger.
// NewLauncher 创建 Launcher。sink 为 nil 时通过 logger 记录每一行输出。
func NewLauncher(logger *zap.Logger, sink LineSink) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = LogSink(logger)
	}
	return &Launcher{logger: logger, sink: sink}
}

// Launch spawns the server described by info and attaches the output drain
// before returning. ctx only gates the spawn; it does not bound the
// lifetime of the process.
// Launch 启动 info 描述的服务器，并在返回前挂接输出排空。ctx 只控制启动动作，不限制进程生命周期。
func (l *Launcher) Launch(ctx context.Context, info *server.Info) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Err: err}
	}

	spec, err := BuildCommand(info)
	if err != nil {
		return nil, err
	}
	return l.start(spec)
}

func (l *Launcher) start(spec *CommandSpec) (*Handle, error) {
	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	setProcGroupAttr(cmd)

	// Plain pipes keep cmd.Wait independent of the readers.
	// 使用普通管道，使 cmd.Wait 不依赖读取方。
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Executable: spec.Executable, Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, &LaunchError{Executable: spec.Executable, Err: err}
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{outR, outW, errR, errW} {
			f.Close()
		}
		return nil, &LaunchError{Executable: spec.Executable, Err: err}
	}
	// The child holds its own copies of the write ends.
	// 子进程持有写端的副本。
	outW.Close()
	errW.Close()

	drain := StartDrain(l.logger, l.sink,
		Source{Stream: Stdout, Reader: outR},
		Source{Stream: Stderr, Reader: errR},
	)
	h := newHandle(cmd, drain, time.Now())

	l.logger.Info("Server process started",
		zap.Int("pid", h.PID()),
		zap.String("dir", spec.Dir),
		zap.String("command", spec.String()),
	)
	return h, nil
}
