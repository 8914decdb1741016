// Copyright (c) 2023 The Disruptor Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines common errors for disruptor.
package errors

import "errors"

var (
	// ErrInsufficientCapacity occurs when a non-blocking claim cannot reserve
	// sequences without overrunning the slowest gating sequence. It is a single
	// process-wide instance so that call sites can discriminate it with
	// errors.Is and the claim path stays allocation-free.
	ErrInsufficientCapacity = errors.New("disruptor: insufficient capacity to claim the requested sequences")
	// ErrAlert occurs when a sequence barrier is alerted while a consumer is waiting on it.
	ErrAlert = errors.New("disruptor: sequence barrier is alerted")
	// ErrTimeout occurs when a timeout-capable wait strategy gives up waiting for a sequence.
	ErrTimeout = errors.New("disruptor: wait strategy timed out")
	// ErrEventProcessorRunning occurs when attempting to run an event processor that is already running.
	ErrEventProcessorRunning = errors.New("disruptor: event processor is already running")
	// ErrArgumentOutOfRange occurs when the requested number of sequences is less than 1 or exceeds the buffer size.
	ErrArgumentOutOfRange = errors.New("disruptor: requested number of sequences is out of range")
	// ErrBufferSizeNotPowerOfTwo occurs when creating a sequencer or ring buffer whose size is not a power of two.
	ErrBufferSizeNotPowerOfTwo = errors.New("disruptor: buffer size must be a power of two")
	// ErrBufferSizeTooSmall occurs when creating a sequencer or ring buffer whose size is less than 1.
	ErrBufferSizeTooSmall = errors.New("disruptor: buffer size must not be less than 1")
	// ErrNilExceptionHandler occurs when installing a nil exception handler on an event processor.
	ErrNilExceptionHandler = errors.New("disruptor: the exception handler is nil")
	// ErrMissingEventFactory occurs when constructing a ring buffer without an event factory.
	ErrMissingEventFactory = errors.New("disruptor: the event factory is nil")
	// ErrMissingWaitStrategy occurs when constructing a sequencer without a wait strategy.
	ErrMissingWaitStrategy = errors.New("disruptor: the wait strategy is nil")
	// ErrDisruptorStarted occurs when mutating the handler graph after Start has been called.
	ErrDisruptorStarted = errors.New("disruptor: all event handlers must be set up before starting")
	// ErrEmptyHandlerGroup occurs when wiring a handler group with no handlers.
	ErrEmptyHandlerGroup = errors.New("disruptor: no event handlers provided")
)
