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

package process

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Stream names an output stream of the server process
// Stream 表示服务器进程的输出流
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineSink receives drained lines, without the trailing line terminator.
// It may be called concurrently for different streams.
// LineSink 接收排空的行（不含行结束符），不同流可能并发调用。
type LineSink func(stream Stream, line string)

// LogSink returns a sink that logs each line at info level
// LogSink 返回一个以 info 级别记录每一行的 sink
func LogSink(logger *zap.Logger) LineSink {
	return func(stream Stream, line string) {
		logger.Info(line, zap.String("stream", string(stream)))
	}
}

// Source is one stream to drain
// Source 是待排空的一个流
type Source struct {
	Stream Stream
	Reader io.ReadCloser
}

// Drain continuously reads the output streams of a process so the child
// never blocks on a full pipe.
// Drain 持续读取进程输出流，避免子进程因管道写满而阻塞。
type Drain struct {
	logger *zap.Logger
	sink   LineSink
	lines  atomic.Int64
	wg     sync.WaitGroup
	done   chan struct{}
}

// StartDrain starts one reader per source and returns immediately.
// Readers are closed at end of file.
// StartDrain 为每个源启动一个读取 goroutine 并立即返回，读到 EOF 后关闭读取端。
func StartDrain(logger *zap.Logger, sink LineSink, sources ...Source) *Drain {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Drain{
		logger: logger,
		sink:   sink,
		done:   make(chan struct{}),
	}
	d.wg.Add(len(sources))
	for _, src := range sources {
		go d.read(src)
	}
	go func() {
		d.wg.Wait()
		close(d.done)
	}()
	return d
}

// Done is closed once every stream reached end of file
// Done 在所有流到达 EOF 后关闭
func (d *Drain) Done() <-chan struct{} { return d.done }

// Lines returns the number of lines forwarded so far
// Lines 返回目前已转发的行数
func (d *Drain) Lines() int64 { return d.lines.Load() }

func (d *Drain) read(src Source) {
	defer d.wg.Done()
	defer src.Reader.Close()

	br := bufio.NewReader(src.Reader)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			d.forward(src.Stream, strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				d.logger.Warn("Failed to read server output",
					zap.String("stream", string(src.Stream)),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// forward hands a line to the sink; a panicking sink costs one line only
// forward 将一行交给 sink；sink panic 只会丢失这一行
func (d *Drain) forward(stream Stream, line string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Output sink panicked",
				zap.String("stream", string(stream)),
				zap.Any("panic", r),
			)
		}
	}()
	d.lines.Add(1)
	if d.sink != nil {
		d.sink(stream, line)
	}
}
