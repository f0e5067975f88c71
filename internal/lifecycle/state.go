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

// Package lifecycle drives an application server through start, readiness
// and stop, reporting every transition of its state machine.
// lifecycle 包驱动应用服务器完成启动、就绪等待和停止，并报告状态机的每次转换。
//
// State machine / 状态机:
//
//	NOT_STARTED -> STARTING -> STARTED -> STOPPING -> STOPPED
//	                        \-> START_FAILED         \-> STOP_FAILED
//
// A cancelled or failed start may still be stopped, so STARTING and
// START_FAILED also lead to STOPPING.
// 被取消或失败的启动仍可被停止，因此 STARTING 和 START_FAILED 也可进入 STOPPING。
package lifecycle

// State is the lifecycle state of a supervised server
// State 是被监管服务器的生命周期状态
type State int32

const (
	StateNotStarted State = iota
	StateStarting
	StateStarted
	StateStartFailed
	StateStopping
	StateStopped
	StateStopFailed
)

var stateNames = map[State]string{
	StateNotStarted:  "NOT_STARTED",
	StateStarting:    "STARTING",
	StateStarted:     "STARTED",
	StateStartFailed: "START_FAILED",
	StateStopping:    "STOPPING",
	StateStopped:     "STOPPED",
	StateStopFailed:  "STOP_FAILED",
}

// States returns every state in declaration order
// States 按声明顺序返回所有状态
func States() []State {
	return []State{
		StateNotStarted, StateStarting, StateStarted, StateStartFailed,
		StateStopping, StateStopped, StateStopFailed,
	}
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition can leave s
// Terminal 报告 s 是否为终止状态
func (s State) Terminal() bool {
	return s == StateStopped || s == StateStopFailed
}

// transitions lists the legal successors of each state
// transitions 列出每个状态的合法后继状态
var transitions = map[State][]State{
	StateNotStarted:  {StateStarting},
	StateStarting:    {StateStarted, StateStartFailed, StateStopping},
	StateStarted:     {StateStopping},
	StateStartFailed: {StateStopping},
	StateStopping:    {StateStopped, StateStopFailed},
}

// CanTransition reports whether from -> to is a legal transition
// CanTransition 报告 from -> to 是否为合法转换
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
