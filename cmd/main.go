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

// Package main is the entry point for serverctl.
// main 包是 serverctl 的入口点。
//
// serverctl starts an application server, waits until its management
// interface reports it running, keeps it up until interrupted and then
// shuts it down, killing it if graceful shutdown stalls.
// serverctl 启动应用服务器，等待管理接口报告其运行，在被中断前保持运行，
// 随后关闭服务器，优雅关闭停滞时强制终止。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/config"
	"github.com/seatunnel/serverctl/internal/lifecycle"
	"github.com/seatunnel/serverctl/internal/logger"
	"github.com/seatunnel/serverctl/internal/management"
	"github.com/seatunnel/serverctl/internal/metrics"
	"github.com/seatunnel/serverctl/internal/otel_trace"
	"github.com/seatunnel/serverctl/internal/pidfile"
	"github.com/seatunnel/serverctl/internal/process"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// ErrUnexpectedExit indicates the server died while it was supposed to run
// ErrUnexpectedExit 表示服务器在应运行期间退出
var ErrUnexpectedExit = errors.New("server exited unexpectedly")

// Supervisor runs one server from start to stop
// Supervisor 负责一台服务器从启动到停止的全过程
type Supervisor struct {
	// config holds the serverctl configuration
	// config 保存 serverctl 配置
	config *config.Config

	// log is the trace aware logger
	// log 是支持追踪的日志记录器
	log *otelzap.Logger

	// client talks to the management interface
	// client 与管理接口通信
	client management.Client

	// controller drives the lifecycle state machine
	// controller 驱动生命周期状态机
	controller *lifecycle.Controller

	// metrics records lifecycle transitions and outcomes
	// metrics 记录生命周期转换和结果
	metrics *metrics.Metrics
}

// NewSupervisor wires the launcher, management client and controller
// NewSupervisor 组装启动器、管理客户端和控制器
func NewSupervisor(cfg *config.Config, log *otelzap.Logger) (*Supervisor, error) {
	client, err := management.NewHTTPClient(cfg.ConnectionInfo(), nil)
	if err != nil {
		return nil, err
	}

	launcher := process.NewLauncher(log.Logger, process.LogSink(log.Logger.Named("server")))
	controller := lifecycle.NewController(cfg.LifecycleConfig(), launcher, log.Logger)
	m := metrics.New()
	controller.SetEventHandler(m.ObserveEvent)

	return &Supervisor{
		config:     cfg,
		log:        log,
		client:     client,
		controller: controller,
		metrics:    m,
	}, nil
}

// Run starts the server, keeps it running until ctx is done and stops it
// Run 启动服务器，在 ctx 结束前保持运行，然后停止服务器
func (s *Supervisor) Run(ctx context.Context) error {
	info, err := s.config.ServerInfo()
	if err != nil {
		return err
	}

	if err := lifecycle.EnsureNotRunning(ctx, s.client, s.config.Lifecycle.ProbeTimeout); err != nil {
		return err
	}
	if err := s.metrics.Serve(ctx, s.config.Telemetry.MetricsListen, s.log.Logger); err != nil {
		return fmt.Errorf("failed to start metrics listener: %w", err)
	}

	h, err := s.controller.Start(ctx, info)
	if err != nil {
		return err
	}
	s.writePIDFile(h.PID())
	defer s.removePIDFile()

	out := s.controller.AwaitStarted(ctx, h, s.client, info.StartupTimeout())
	s.metrics.ObserveStartup(out)
	switch out.State {
	case lifecycle.StateStarted:
		s.log.Ctx(ctx).Info("Server is running",
			zap.Int("pid", h.PID()),
			zap.Duration("startup", out.Elapsed),
		)
	case lifecycle.StateStartFailed:
		if h.Alive() {
			// Reap a server that never came up.
			s.metrics.ObserveShutdown(s.controller.Stop(context.WithoutCancel(ctx), h, s.client))
		}
		return fmt.Errorf("server failed to start: %w", out.Err)
	default:
		// Interrupted while starting; the controller already stopped it.
		if out.State == lifecycle.StateStopFailed {
			return out.Err
		}
		return nil
	}

	var exitErr error
	select {
	case <-ctx.Done():
		s.log.Ctx(ctx).Info("Stop requested", zap.Error(context.Cause(ctx)))
	case <-h.Done():
		exitErr = fmt.Errorf("%w with code %d", ErrUnexpectedExit, h.ExitCode())
		s.log.Ctx(ctx).Error("Server exited while running", zap.Int("exit_code", h.ExitCode()))
	}

	stop := s.controller.Stop(context.WithoutCancel(ctx), h, s.client)
	s.metrics.ObserveShutdown(stop)
	if stop.State == lifecycle.StateStopFailed {
		return fmt.Errorf("server failed to stop: %w", stop.Err)
	}
	return exitErr
}

func (s *Supervisor) writePIDFile(pid int) {
	path := s.config.Server.PIDFile
	if path == "" {
		return
	}
	if err := pidfile.Write(path, pid); err != nil {
		s.log.Warn("Failed to write pid file", zap.String("path", path), zap.Error(err))
	}
}

func (s *Supervisor) removePIDFile() {
	if err := pidfile.Remove(s.config.Server.PIDFile); err != nil {
		s.log.Warn("Failed to remove pid file", zap.String("path", s.config.Server.PIDFile), zap.Error(err))
	}
}

// Status probes the management interface once
// Status 探测一次管理接口
func (s *Supervisor) Status(ctx context.Context) (management.ServerState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Lifecycle.ProbeTimeout)
	defer cancel()
	return s.client.ProbeState(ctx)
}

// Process describes the process named by the pid file, if one is configured
// Process 描述 pid 文件记录的进程（如已配置）
func (s *Supervisor) Process(ctx context.Context) (*pidfile.Info, error) {
	pid, err := pidfile.Read(s.config.Server.PIDFile)
	if err != nil {
		return nil, err
	}
	return pidfile.Inspect(ctx, pid)
}

// rootCmd is the root command for the serverctl CLI
// rootCmd 是 serverctl CLI 的根命令
var rootCmd = &cobra.Command{
	Use:   "serverctl",
	Short: "serverctl - application server lifecycle controller",
	Long: `serverctl starts an application server, waits for it to become ready,
and shuts it down cleanly on SIGINT or SIGTERM.
serverctl 启动应用服务器，等待其就绪，并在收到 SIGINT 或 SIGTERM 时干净地关闭它。`,
	SilenceUsage: true,
	RunE:         runServer,
}

// runCmd is the explicit form of the root command
// runCmd 是根命令的显式形式
var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Start the server and supervise it until interrupted / 启动并监管服务器直到被中断",
	SilenceUsage: true,
	RunE:         runServer,
}

// statusCmd prints the server state reported by the management interface
// statusCmd 打印管理接口报告的服务器状态
var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Print the server state / 打印服务器状态",
	SilenceUsage: true,
	RunE:         runStatus,
}

// configCmd prints the effective configuration
// configCmd 打印生效的配置
var configCmd = &cobra.Command{
	Use:          "config",
	Short:        "Print the effective configuration / 打印生效的配置",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := cfg.Redacted().ToYAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// versionCmd shows version information
// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information / 打印版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "serverctl\n")
		fmt.Fprintf(out, "  Version:    %s\n", Version)
		fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// configFile is the path to the configuration file
// configFile 是配置文件的路径
var configFile string

// Command line overrides / 命令行覆盖项
var (
	flagServerHome     string
	flagJavaHome       string
	flagModulesDir     string
	flagJVMArgs        []string
	flagServerConfig   string
	flagPropertiesFile string
	flagStartupTimeout time.Duration
	flagPIDFile        string
	flagProtocol       string
	flagHost           string
	flagPort           int
	flagLogLevel       string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")
	flags.StringVar(&flagServerHome, "server-home", "", "server installation directory")
	flags.StringVar(&flagJavaHome, "java-home", "", "JDK directory (default: JAVA_HOME or java on PATH)")
	flags.StringVar(&flagModulesDir, "modules-dir", "", "\";\" separated module path (default: <server-home>/modules)")
	flags.StringArrayVar(&flagJVMArgs, "jvm-arg", nil, "extra JVM argument, repeatable")
	flags.StringVar(&flagServerConfig, "server-config", "", "alternate server configuration file")
	flags.StringVar(&flagPropertiesFile, "properties-file", "", "properties file loaded at startup")
	flags.DurationVar(&flagStartupTimeout, "startup-timeout", 0, "how long to wait for the server to start")
	flags.StringVar(&flagPIDFile, "pid-file", "", "file recording the server pid while it runs")
	flags.StringVar(&flagProtocol, "protocol", "", "management protocol")
	flags.StringVar(&flagHost, "host", "", "management host")
	flags.IntVar(&flagPort, "port", 0, "management port")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, statusCmd, configCmd, versionCmd)
}

// cmdArgs collects the flags that were set explicitly
// cmdArgs 收集显式设置的标志
func cmdArgs(cmd *cobra.Command) map[string]interface{} {
	flags := cmd.Flags()
	args := make(map[string]interface{})
	set := func(flag, key string, value interface{}) {
		if flags.Changed(flag) {
			args[key] = value
		}
	}
	set("server-home", "server.server_home", flagServerHome)
	set("java-home", "server.java_home", flagJavaHome)
	set("modules-dir", "server.modules_dir", flagModulesDir)
	set("jvm-arg", "server.jvm_args", flagJVMArgs)
	set("server-config", "server.server_config", flagServerConfig)
	set("properties-file", "server.properties_file", flagPropertiesFile)
	set("startup-timeout", "server.startup_timeout", flagStartupTimeout)
	set("pid-file", "server.pid_file", flagPIDFile)
	set("protocol", "management.protocol", flagProtocol)
	set("host", "management.host", flagHost)
	set("port", "management.port", flagPort)
	set("log-level", "log.level", flagLogLevel)
	return args
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithPriority(configFile, cmdArgs(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads configuration and builds the logger, tracer and supervisor
// setup 加载配置并构建日志、追踪器和 Supervisor
func setup(cmd *cobra.Command) (*Supervisor, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	otel_trace.Init(cmd.Context(), cfg.TraceConfig(), log.Logger)

	sup, err := NewSupervisor(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		otel_trace.Shutdown(ctx)
		_ = log.Sync()
	}
	return sup, cleanup, nil
}

// runServer is the main entry point of the run loop
// runServer 是运行循环的主入口点
func runServer(cmd *cobra.Command, args []string) error {
	sup, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// Setup signal handling for graceful shutdown
	// 设置信号处理以实现优雅关闭
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup.log.Ctx(ctx).Info("serverctl starting",
		zap.String("version", Version),
		zap.String("run_id", sup.controller.ID()),
		zap.Stringer("config", sup.config),
	)
	return sup.Run(ctx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sup, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if proc, err := sup.Process(cmd.Context()); err == nil {
		fmt.Fprintln(out, proc)
	} else if !errors.Is(err, pidfile.ErrNoPIDFile) {
		sup.log.Debug("No process details", zap.Error(err))
	}

	state, err := sup.Status(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, state)
	if !state.IsRunning() {
		return fmt.Errorf("server is %s", state)
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
