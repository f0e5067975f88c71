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

// Package config provides configuration management for serverctl.
// config 包提供 serverctl 的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables / 环境变量
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/seatunnel/serverctl/internal/lifecycle"
	"github.com/seatunnel/serverctl/internal/management"
	"github.com/seatunnel/serverctl/internal/otel_trace"
	"github.com/seatunnel/serverctl/internal/server"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath     = "/etc/serverctl/config.yaml"
	DefaultEnvPrefix      = "SERVERCTL"
	DefaultServerHome     = "/opt/wildfly"
	DefaultStartupTimeout = 60 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultLogOutput      = "stdout"
	DefaultLogFile        = "/var/log/serverctl/serverctl.log"
	DefaultLogMaxSize     = 100 // MB
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAge      = 7 // days
	DefaultServiceName    = "serverctl"
	DefaultOTLPEndpoint   = "localhost:4317"
)

// envConfigPath names the variable that points at the config file
const envConfigPath = DefaultEnvPrefix + "_CONFIG_PATH"

// Config represents the serverctl configuration
// Config 表示 serverctl 配置
type Config struct {
	// Server installation and start options / 服务器安装与启动选项
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Management interface connection / 管理接口连接
	Management ManagementConfig `mapstructure:"management" yaml:"management"`

	// Lifecycle timing policy / 生命周期时间策略
	Lifecycle LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Telemetry configuration / 遥测配置
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// ServerConfig describes the server to start
// ServerConfig 描述要启动的服务器
type ServerConfig struct {
	// JavaHome is the JDK to use; empty means JAVA_HOME or java on PATH
	// JavaHome 是使用的 JDK；为空表示使用 JAVA_HOME 或 PATH 中的 java
	JavaHome string `mapstructure:"java_home" yaml:"java_home"`

	// ServerHome is the server installation directory
	// ServerHome 是服务器安装目录
	ServerHome string `mapstructure:"server_home" yaml:"server_home"`

	// ModulesDir is a ";" separated module path; empty means <server_home>/modules
	// ModulesDir 是以 ";" 分隔的模块路径；为空表示 <server_home>/modules
	ModulesDir string `mapstructure:"modules_dir" yaml:"modules_dir"`

	JVMArgs        []string      `mapstructure:"jvm_args" yaml:"jvm_args"`
	ServerConfig   string        `mapstructure:"server_config" yaml:"server_config"`
	PropertiesFile string        `mapstructure:"properties_file" yaml:"properties_file"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`

	// PIDFile records the server pid while it runs; empty disables it
	// PIDFile 在服务器运行期间记录其 pid；为空表示不记录
	PIDFile string `mapstructure:"pid_file" yaml:"pid_file"`
}

// ManagementConfig contains management interface settings
// ManagementConfig 包含管理接口设置
type ManagementConfig struct {
	Protocol string `mapstructure:"protocol" yaml:"protocol"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// LifecycleConfig contains the probe and shutdown timing
// LifecycleConfig 包含探测与关闭的时间设置
type LifecycleConfig struct {
	ProbeInterval   time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	GracePeriod     time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	KillTimeout     time.Duration `mapstructure:"kill_timeout" yaml:"kill_timeout"`
	ShutdownRetries int           `mapstructure:"shutdown_retries" yaml:"shutdown_retries"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level" yaml:"level"`

	// Format is json or console
	// Format 是 json 或 console
	Format string `mapstructure:"format" yaml:"format"`

	// Output is stdout, file or both
	// Output 是 stdout、file 或 both
	Output string `mapstructure:"output" yaml:"output"`

	// File is the log file path
	// File 是日志文件路径
	File string `mapstructure:"file" yaml:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age" yaml:"max_age"`

	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings
// TelemetryConfig 包含 OpenTelemetry 设置
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`

	// MetricsListen is the address serving Prometheus metrics; empty disables it
	// MetricsListen 是提供 Prometheus 指标的地址；为空表示不监听
	MetricsListen string `mapstructure:"metrics_listen" yaml:"metrics_listen"`
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := viper.New()

	// Set default values / 设置默认值
	setDefaults(v)

	// Set config file path / 设置配置文件路径
	if configPath == "" {
		configPath = os.Getenv(envConfigPath)
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file / 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// A missing file falls back to defaults
		// 配置文件不存在时使用默认值
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server defaults / 服务器默认值
	v.SetDefault("server.java_home", "")
	v.SetDefault("server.server_home", DefaultServerHome)
	v.SetDefault("server.modules_dir", "")
	v.SetDefault("server.jvm_args", []string{})
	v.SetDefault("server.server_config", "")
	v.SetDefault("server.properties_file", "")
	v.SetDefault("server.startup_timeout", DefaultStartupTimeout)
	v.SetDefault("server.pid_file", "")

	// Management defaults / 管理接口默认值
	v.SetDefault("management.protocol", management.DefaultProtocol)
	v.SetDefault("management.host", management.DefaultHost)
	v.SetDefault("management.port", management.DefaultPort)
	v.SetDefault("management.username", "")
	v.SetDefault("management.password", "")

	// Lifecycle defaults / 生命周期默认值
	v.SetDefault("lifecycle.probe_interval", lifecycle.DefaultProbeInterval)
	v.SetDefault("lifecycle.probe_timeout", lifecycle.DefaultProbeTimeout)
	v.SetDefault("lifecycle.grace_period", lifecycle.DefaultGracePeriod)
	v.SetDefault("lifecycle.kill_timeout", lifecycle.DefaultKillTimeout)
	v.SetDefault("lifecycle.shutdown_retries", lifecycle.DefaultShutdownRetries)

	// Log defaults / 日志默认值
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output", DefaultLogOutput)
	v.SetDefault("log.file", DefaultLogFile)
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
	v.SetDefault("log.compress", false)

	// Telemetry defaults / 遥测默认值
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", DefaultOTLPEndpoint)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", DefaultServiceName)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metrics_listen", "")
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.ServerHome == "" {
		return errors.New("server.server_home is required")
	}
	if c.Server.StartupTimeout <= 0 {
		return errors.New("server.startup_timeout must be positive")
	}

	// Validate management connection / 验证管理连接
	if _, err := c.ConnectionInfo().Scheme(); err != nil {
		return fmt.Errorf("management.protocol: %w", err)
	}
	if c.Management.Port < 1 || c.Management.Port > 65535 {
		return fmt.Errorf("management.port out of range: %d", c.Management.Port)
	}
	if c.Management.Password != "" && c.Management.Username == "" {
		return errors.New("management.username is required when a password is set")
	}

	// Validate lifecycle policy / 验证生命周期策略
	if err := c.LifecycleConfig().Validate(); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}

	// Validate log level / 验证日志级别
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Output) {
	case "stdout":
	case "file", "both":
		if c.Log.File == "" {
			return errors.New("log.file is required when logging to a file")
		}
	default:
		return fmt.Errorf("invalid log output: %s (must be stdout, file, or both)", c.Log.Output)
	}

	// Validate telemetry / 验证遥测
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio)
	}
	return nil
}

// ConnectionInfo builds the management connection descriptor
// ConnectionInfo 构建管理连接描述
func (c *Config) ConnectionInfo() management.ConnectionInfo {
	return management.ConnectionInfo{
		Protocol: c.Management.Protocol,
		Host:     c.Management.Host,
		Port:     c.Management.Port,
		Username: c.Management.Username,
		Password: c.Management.Password,
	}
}

// ServerInfo builds the validated server description
// ServerInfo 构建经过校验的服务器描述
func (c *Config) ServerInfo() (*server.Info, error) {
	return server.Of(
		c.ConnectionInfo(),
		c.Server.JavaHome,
		c.Server.ServerHome,
		c.Server.ModulesDir,
		c.Server.JVMArgs,
		c.Server.ServerConfig,
		c.Server.PropertiesFile,
		c.Server.StartupTimeout,
	)
}

// LifecycleConfig converts the timing policy for the controller
// LifecycleConfig 为控制器转换时间策略
func (c *Config) LifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		ProbeInterval:   c.Lifecycle.ProbeInterval,
		ProbeTimeout:    c.Lifecycle.ProbeTimeout,
		GracePeriod:     c.Lifecycle.GracePeriod,
		KillTimeout:     c.Lifecycle.KillTimeout,
		ShutdownRetries: c.Lifecycle.ShutdownRetries,
	}
}

// TraceConfig converts the telemetry settings for the tracer
// TraceConfig 为追踪器转换遥测设置
func (c *Config) TraceConfig() otel_trace.Config {
	return otel_trace.Config{
		Enabled:     c.Telemetry.Enabled,
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		ServiceName: c.Telemetry.ServiceName,
		SampleRatio: c.Telemetry.SampleRatio,
	}
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server.ServerHome: %s, Server.StartupTimeout: %v, Management: %s, Log.Level: %s}",
		c.Server.ServerHome,
		c.Server.StartupTimeout,
		c.ConnectionInfo(),
		c.Log.Level,
	)
}

// Redacted returns a copy with secrets masked
// Redacted 返回屏蔽敏感信息后的副本
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.JVMArgs = append([]string(nil), c.Server.JVMArgs...)
	if out.Management.Password != "" {
		out.Management.Password = "******"
	}
	return &out
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults first / 首先设置默认值
	setDefaults(v)

	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}

	// Compare Server / 比较 Server
	if c.Server.JavaHome != other.Server.JavaHome ||
		c.Server.ServerHome != other.Server.ServerHome ||
		c.Server.ModulesDir != other.Server.ModulesDir ||
		c.Server.ServerConfig != other.Server.ServerConfig ||
		c.Server.PropertiesFile != other.Server.PropertiesFile ||
		c.Server.StartupTimeout != other.Server.StartupTimeout ||
		c.Server.PIDFile != other.Server.PIDFile {
		return false
	}
	if len(c.Server.JVMArgs) != len(other.Server.JVMArgs) {
		return false
	}
	for i, arg := range c.Server.JVMArgs {
		if arg != other.Server.JVMArgs[i] {
			return false
		}
	}

	// Remaining sections hold comparable values only
	// 其余部分只包含可比较的值
	return c.Management == other.Management &&
		c.Lifecycle == other.Lifecycle &&
		c.Log == other.Log &&
		c.Telemetry == other.Telemetry
}
