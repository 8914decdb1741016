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

package disruptor

import (
	"errors"
	"sync"
	"sync/atomic"

	errorx "github.com/shui4/disruptor/pkg/errors"
)

var errTestFault = errors.New("test fault")

type valueEvent struct {
	value    int64
	producer int
}

func newValueEvent() valueEvent {
	return valueEvent{value: -1}
}

type record struct {
	sequence int64
	value    int64
	producer int
}

// recordingHandler records every dispatched event and closes done once
// expected events have been seen.
type recordingHandler struct {
	mu       sync.Mutex
	records  []record
	batchEnd []bool
	expected int
	done     chan struct{}
	once     sync.Once
}

func newRecordingHandler(expected int) *recordingHandler {
	return &recordingHandler{expected: expected, done: make(chan struct{})}
}

func (h *recordingHandler) OnEvent(event *valueEvent, sequence int64, endOfBatch bool) error {
	h.mu.Lock()
	h.records = append(h.records, record{sequence: sequence, value: event.value, producer: event.producer})
	h.batchEnd = append(h.batchEnd, endOfBatch)
	reached := len(h.records) >= h.expected
	h.mu.Unlock()
	if reached {
		h.once.Do(func() { close(h.done) })
	}
	return nil
}

func (h *recordingHandler) snapshot() []record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]record, len(h.records))
	copy(out, h.records)
	return out
}

// lifecycleHandler counts lifecycle notifications on top of recording.
type lifecycleHandler struct {
	recordingHandler
	starts    atomic.Int32
	shutdowns atomic.Int32
	started   chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newLifecycleHandler(expected int) *lifecycleHandler {
	h := &lifecycleHandler{started: make(chan struct{}), stopped: make(chan struct{})}
	h.expected = expected
	h.done = make(chan struct{})
	return h
}

func (h *lifecycleHandler) OnStart() {
	h.starts.Add(1)
	h.startOnce.Do(func() { close(h.started) })
}

func (h *lifecycleHandler) OnShutdown() {
	h.shutdowns.Add(1)
	h.stopOnce.Do(func() { close(h.stopped) })
}

// stubBarrier is the minimal SequenceBarrier used to drive wait
// strategies directly.
type stubBarrier struct {
	alerted atomic.Bool
	cursor  *Sequence
}

func newStubBarrier(cursor *Sequence) *stubBarrier {
	return &stubBarrier{cursor: cursor}
}

func (b *stubBarrier) WaitFor(int64) (int64, error) { return b.cursor.Get(), nil }
func (b *stubBarrier) Cursor() int64                { return b.cursor.Get() }
func (b *stubBarrier) IsAlerted() bool              { return b.alerted.Load() }
func (b *stubBarrier) Alert()                       { b.alerted.Store(true) }
func (b *stubBarrier) ClearAlert()                  { b.alerted.Store(false) }
func (b *stubBarrier) CheckAlert() error {
	if b.alerted.Load() {
		return errorx.ErrAlert
	}
	return nil
}
