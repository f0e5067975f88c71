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

// Package metrics exposes lifecycle metrics in Prometheus format.
// metrics 包以 Prometheus 格式暴露生命周期指标。
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seatunnel/serverctl/internal/lifecycle"
)

// Namespace prefixes every metric name
// Namespace 是所有指标名的前缀
const Namespace = "serverctl"

// Path is where the metrics handler is mounted
// Path 是指标处理器的挂载路径
const Path = "/metrics"

// Metrics holds the lifecycle collectors of one controller
// Metrics 保存一个控制器的生命周期采集器
type Metrics struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	state            *prometheus.GaugeVec
	startupDuration  *prometheus.HistogramVec
	shutdownDuration *prometheus.HistogramVec
	probes           prometheus.Counter
	kills            prometheus.Counter
}

// New registers the collectors on a fresh registry
// New 在新的注册表上注册采集器
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	durationBuckets := []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300}
	m := &Metrics{
		registry: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "lifecycle_transitions_total",
				Help:      "Total lifecycle state transitions by source and target state",
			},
			[]string{"from", "to"},
		),
		state: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "lifecycle_state",
				Help:      "1 for the current lifecycle state, 0 for the others",
			},
			[]string{"state"},
		),
		startupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "startup_duration_seconds",
				Help:      "Time from launch until the server was started or failed to start",
				Buckets:   durationBuckets,
			},
			[]string{"result"},
		),
		shutdownDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "shutdown_duration_seconds",
				Help:      "Time spent stopping the server",
				Buckets:   durationBuckets,
			},
			[]string{"result"},
		),
		probes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "readiness_probes_total",
			Help:      "Total management readiness probes sent while starting",
		}),
		kills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "forced_kills_total",
			Help:      "Total forced kills issued after graceful shutdown stalled",
		}),
	}
	m.setState(lifecycle.StateNotStarted)
	return m
}

// Registry returns the registry backing these metrics
// Registry 返回这些指标使用的注册表
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveEvent records a state transition
// ObserveEvent 记录一次状态转换
func (m *Metrics) ObserveEvent(e lifecycle.Event) {
	m.transitions.WithLabelValues(e.From.String(), e.To.String()).Inc()
	m.setState(e.To)
}

// ObserveStartup records the outcome of AwaitStarted
// ObserveStartup 记录 AwaitStarted 的结果
func (m *Metrics) ObserveStartup(out lifecycle.Outcome) {
	m.startupDuration.WithLabelValues(result(out)).Observe(out.Elapsed.Seconds())
	m.probes.Add(float64(out.Probes))
	m.kills.Add(float64(out.Kills))
}

// ObserveShutdown records the outcome of Stop
// ObserveShutdown 记录 Stop 的结果
func (m *Metrics) ObserveShutdown(out lifecycle.Outcome) {
	m.shutdownDuration.WithLabelValues(result(out)).Observe(out.Elapsed.Seconds())
	m.kills.Add(float64(out.Kills))
}

func (m *Metrics) setState(current lifecycle.State) {
	for _, s := range lifecycle.States() {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

func result(out lifecycle.Outcome) string {
	if out.OK() {
		return "ok"
	}
	return "failed"
}

// Handler serves the registry in the Prometheus exposition format
// Handler 以 Prometheus 格式提供注册表内容
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes the metrics on addr until ctx is done. An empty addr
// disables the listener.
// Serve 在 addr 上暴露指标直到 ctx 结束，addr 为空时不监听。
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener stopped", zap.Error(err))
		}
	}()

	logger.Info("Metrics listener started", zap.String("address", ln.Addr().String()))
	return nil
}
