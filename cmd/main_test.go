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

package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatunnel/serverctl/internal/config"
	"github.com/seatunnel/serverctl/internal/logger"
)

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "Version:    "+Version)
	assert.Contains(t, out.String(), "Git Commit: "+GitCommit)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "serverctl", rootCmd.Use)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["status"])
	assert.True(t, names["config"])
	assert.True(t, names["version"])

	for _, flag := range []string{"config", "server-home", "java-home", "modules-dir", "jvm-arg",
		"server-config", "properties-file", "startup-timeout", "pid-file", "protocol", "host", "port", "log-level"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestConfigCommand_FlagsOverrideDefaults(t *testing.T) {
	home := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"config",
		"-c", filepath.Join(t.TempDir(), "missing.yaml"),
		"--server-home", home,
		"--port", "10090",
		"--jvm-arg", "-Xmx1g",
		"--jvm-arg", "-Dwith space=1",
		"--startup-timeout", "90s",
		"--log-level", "debug",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	cfg, err := config.LoadFromYAML(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, home, cfg.Server.ServerHome)
	assert.Equal(t, 10090, cfg.Management.Port)
	assert.Equal(t, []string{"-Xmx1g", "-Dwith space=1"}, cfg.Server.JVMArgs)
	assert.Equal(t, 90*time.Second, cfg.Server.StartupTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.DefaultLogFormat, cfg.Log.Format)
	// Flags that were not given keep their defaults.
	assert.Equal(t, "localhost", cfg.Management.Host)
}

func TestNewSupervisor_RejectsUnknownProtocol(t *testing.T) {
	cfg, err := config.LoadWithPriority(filepath.Join(t.TempDir(), "missing.yaml"), map[string]interface{}{
		"management.protocol": "gopher",
	})
	require.NoError(t, err)

	_, err = NewSupervisor(cfg, logger.Nop())
	assert.Error(t, err)
}
