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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorx "github.com/shui4/disruptor/pkg/errors"
)

// newGatedProcessor builds a processor and registers its sequence as a
// gating sequence before anything is published, so the consumer starts
// from the beginning of the stream.
func newGatedProcessor[E any](rb *RingBuffer[E], handler EventHandler[E]) *BatchEventProcessor[E] {
	p := NewBatchEventProcessor[E](rb, rb.NewBarrier(), handler)
	rb.AddGatingSequences(p.Sequence())
	return p
}

func startProcessor(t *testing.T, p *BatchEventProcessor[valueEvent]) (stop func()) {
	t.Helper()
	finished := make(chan error, 1)
	go func() { finished <- p.Run() }()

	return func() {
		p.Halt()
		select {
		case err := <-finished:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("processor did not halt in time")
		}
	}
}

// A single producer publishing sequences 0..31 through a 16-slot ring:
// the consumer must observe exactly the payloads written, in order,
// with no skips across both laps of the ring.
func TestProcessorDeliversInOrderAcrossWraps(t *testing.T) {
	const total = 32
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := newRecordingHandler(total)
	processor := newGatedProcessor[valueEvent](rb, handler)
	stop := startProcessor(t, processor)

	for i := int64(0); i < total; i++ {
		seq, nextErr := rb.Next(1)
		require.NoError(t, nextErr)
		require.Equal(t, i, seq)
		rb.Get(seq).value = seq
		rb.Publish(seq)
	}

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not observe all events")
	}
	stop()

	records := handler.snapshot()
	require.Len(t, records, total)
	for i, r := range records {
		assert.EqualValues(t, i, r.sequence)
		assert.EqualValues(t, i, r.value)
	}
	assert.False(t, processor.IsRunning())
}

// endOfBatch must be set on exactly the last event of each drain.
func TestProcessorEndOfBatchFlags(t *testing.T) {
	const total = 6
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := newRecordingHandler(total)
	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)

	// Publish everything before the processor starts so the whole run
	// arrives as one batch.
	for i := int64(0); i < total; i++ {
		seq, nextErr := rb.Next(1)
		require.NoError(t, nextErr)
		rb.Get(seq).value = seq
		rb.Publish(seq)
	}
	stop := startProcessor(t, processor)
	<-handler.done
	stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.batchEnd, total)
	assert.True(t, handler.batchEnd[total-1])
	for i := 0; i < total-1; i++ {
		assert.False(t, handler.batchEnd[i], "event %d flagged as end of batch", i)
	}
}

type faultingHandler struct {
	recordingHandler
	faultOn int64
}

func (h *faultingHandler) OnEvent(event *valueEvent, sequence int64, endOfBatch bool) error {
	if sequence == h.faultOn {
		return errors.New("poisoned event")
	}
	return h.recordingHandler.OnEvent(event, sequence, endOfBatch)
}

type recordingExceptionHandler struct {
	mu        sync.Mutex
	events    []int64
	starts    int
	shutdowns int
}

func (h *recordingExceptionHandler) HandleEventError(_ error, sequence int64, _ *valueEvent) {
	h.mu.Lock()
	h.events = append(h.events, sequence)
	h.mu.Unlock()
}

func (h *recordingExceptionHandler) HandleOnStartError(error) {
	h.mu.Lock()
	h.starts++
	h.mu.Unlock()
}

func (h *recordingExceptionHandler) HandleOnShutdownError(error) {
	h.mu.Lock()
	h.shutdowns++
	h.mu.Unlock()
}

// A handler fault on one sequence must be routed to the exception
// handler and skipped; the pipeline keeps moving.
func TestProcessorSkipsFaultingSequence(t *testing.T) {
	const total = 10
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := &faultingHandler{faultOn: 5}
	handler.expected = total - 1
	handler.done = make(chan struct{})
	excHandler := new(recordingExceptionHandler)

	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)
	require.ErrorIs(t, processor.SetExceptionHandler(nil), errorx.ErrNilExceptionHandler)
	require.NoError(t, processor.SetExceptionHandler(excHandler))

	stop := startProcessor(t, processor)
	for i := int64(0); i < total; i++ {
		seq, nextErr := rb.Next(1)
		require.NoError(t, nextErr)
		rb.Get(seq).value = seq
		rb.Publish(seq)
	}
	<-handler.done
	stop()

	excHandler.mu.Lock()
	require.Equal(t, []int64{5}, excHandler.events)
	excHandler.mu.Unlock()

	var seen []int64
	for _, r := range handler.snapshot() {
		seen = append(seen, r.sequence)
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 6, 7, 8, 9}, seen)
}

type panickyHandler struct {
	recordingHandler
	panicOn int64
}

func (h *panickyHandler) OnEvent(event *valueEvent, sequence int64, endOfBatch bool) error {
	if sequence == h.panicOn {
		panic("handler exploded")
	}
	return h.recordingHandler.OnEvent(event, sequence, endOfBatch)
}

// A panicking handler must not kill the consumer goroutine.
func TestProcessorRecoversHandlerPanic(t *testing.T) {
	const total = 4
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := &panickyHandler{panicOn: 1}
	handler.expected = total - 1
	handler.done = make(chan struct{})
	excHandler := new(recordingExceptionHandler)

	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)
	require.NoError(t, processor.SetExceptionHandler(excHandler))
	stop := startProcessor(t, processor)

	for i := int64(0); i < total; i++ {
		seq, nextErr := rb.Next(1)
		require.NoError(t, nextErr)
		rb.Get(seq).value = seq
		rb.Publish(seq)
	}
	<-handler.done
	stop()

	excHandler.mu.Lock()
	assert.Equal(t, []int64{1}, excHandler.events)
	excHandler.mu.Unlock()
}

// Halting before the processor was ever run must still deliver the
// lifecycle pair, exactly once, with no events.
func TestProcessorHaltBeforeRun(t *testing.T) {
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := newLifecycleHandler(0)
	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)

	processor.Halt()
	require.NoError(t, processor.Run())

	assert.EqualValues(t, 1, handler.starts.Load())
	assert.EqualValues(t, 1, handler.shutdowns.Load())
	assert.Empty(t, handler.snapshot())
	assert.False(t, processor.IsRunning())
}

func TestProcessorRejectsConcurrentRun(t *testing.T) {
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := newLifecycleHandler(1)
	processor := newGatedProcessor[valueEvent](rb, handler)
	stop := startProcessor(t, processor)
	<-handler.started

	require.ErrorIs(t, processor.Run(), errorx.ErrEventProcessorRunning)
	stop()
}

func TestProcessorRunsAgainAfterHalt(t *testing.T) {
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := newLifecycleHandler(0)
	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)

	for i := 0; i < 3; i++ {
		finished := make(chan error, 1)
		go func() { finished <- processor.Run() }()
		assert.Eventually(t, processor.IsRunning, 2*time.Second, time.Millisecond)
		processor.Halt()
		select {
		case runErr := <-finished:
			require.NoError(t, runErr)
		case <-time.After(5 * time.Second):
			t.Fatal("processor did not halt")
		}
		assert.Eventually(t, func() bool { return !processor.IsRunning() }, 2*time.Second, time.Millisecond)
	}
	assert.EqualValues(t, 3, handler.starts.Load())
	assert.EqualValues(t, 3, handler.shutdowns.Load())
}

type batchObservingHandler struct {
	rb         *RingBuffer[valueEvent]
	mu         sync.Mutex
	batchSizes []int64
	seen       int
	expected   int
	done       chan struct{}
	once       sync.Once
}

func (h *batchObservingHandler) OnBatchStart(batchSize int64) {
	h.mu.Lock()
	h.batchSizes = append(h.batchSizes, batchSize)
	h.mu.Unlock()
}

func (h *batchObservingHandler) OnEvent(_ *valueEvent, _ int64, endOfBatch bool) error {
	if !endOfBatch {
		seq, err := h.rb.Next(1)
		if err != nil {
			return err
		}
		h.rb.Publish(seq)
	}
	h.mu.Lock()
	h.seen++
	reached := h.seen >= h.expected
	h.mu.Unlock()
	if reached {
		h.once.Do(func() { close(h.done) })
	}
	return nil
}

// Loopback batching: three pre-published events produce batches of
// sizes 3, 2 and 1 as each non-terminal event republishes one more.
func TestProcessorReportsAccurateBatchSizes(t *testing.T) {
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := &batchObservingHandler{rb: rb, expected: 6, done: make(chan struct{})}
	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)

	for i := 0; i < 3; i++ {
		seq, nextErr := rb.Next(1)
		require.NoError(t, nextErr)
		rb.Publish(seq)
	}
	stop := startProcessor(t, processor)

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("loopback batches did not complete")
	}
	stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []int64{3, 2, 1}, handler.batchSizes)
}

type timeoutObservingHandler struct {
	recordingHandler
	timeouts chan int64
}

func (h *timeoutObservingHandler) OnTimeout(sequence int64) error {
	select {
	case h.timeouts <- sequence:
	default:
	}
	return nil
}

// A wait-strategy timeout surfaces as a notification carrying the
// processor's current sequence, not as a failure.
func TestProcessorNotifiesTimeout(t *testing.T) {
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16,
		NewTimeoutBlockingWaitStrategy(5*time.Millisecond))
	require.NoError(t, err)
	handler := &timeoutObservingHandler{timeouts: make(chan int64, 1)}
	handler.expected = 1
	handler.done = make(chan struct{})
	processor := newGatedProcessor[valueEvent](rb, handler)
	stop := startProcessor(t, processor)

	select {
	case seq := <-handler.timeouts:
		assert.EqualValues(t, InitialSequenceValue, seq)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout notification never arrived")
	}

	// The processor keeps consuming normally after a timeout.
	require.NoError(t, rb.PublishEvent(func(event *valueEvent, sequence int64) {
		event.value = sequence
	}))
	<-handler.done
	stop()
}

type sequenceReportingHandler struct {
	recordingHandler
	callback atomic.Pointer[Sequence]
}

func (h *sequenceReportingHandler) SetSequenceCallback(sequence *Sequence) {
	h.callback.Store(sequence)
}

func TestProcessorInstallsSequenceCallback(t *testing.T) {
	rb, err := NewSingleProducerRingBuffer(newValueEvent, 16, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := new(sequenceReportingHandler)
	handler.expected = 1
	handler.done = make(chan struct{})
	processor := NewBatchEventProcessor[valueEvent](rb, rb.NewBarrier(), handler)

	require.Same(t, processor.Sequence(), handler.callback.Load())
}

// The producer must never overtake the slowest consumer by more than
// the ring size, sampled while both sides run flat out.
func TestProcessorWrapPrevention(t *testing.T) {
	const (
		bufferSize = 8
		total      = 2000
	)
	rb, err := NewSingleProducerRingBuffer(newValueEvent, bufferSize, NewBusySpinWaitStrategy())
	require.NoError(t, err)
	handler := newRecordingHandler(total)
	processor := newGatedProcessor[valueEvent](rb, handler)
	stop := startProcessor(t, processor)

	var violations atomic.Int64
	sampling := make(chan struct{})
	go func() {
		for {
			select {
			case <-sampling:
				return
			default:
				lag := rb.Cursor() - processor.Sequence().Get()
				if lag > bufferSize {
					violations.Add(1)
				}
			}
		}
	}()

	for i := int64(0); i < total; i++ {
		seq, nextErr := rb.Next(1)
		require.NoError(t, nextErr)
		rb.Get(seq).value = seq
		rb.Publish(seq)
	}
	<-handler.done
	close(sampling)
	stop()

	assert.Zero(t, violations.Load())
	assert.Len(t, handler.snapshot(), total)
}

// Multi-producer end to end: three producers, one consumer; per
// producer the delivery order must match its publish order.
func TestProcessorMultiProducerDelivery(t *testing.T) {
	const (
		producers   = 3
		perProducer = 10000
		total       = producers * perProducer
	)
	rb, err := NewMultiProducerRingBuffer(newValueEvent, 1<<10, NewBlockingWaitStrategy())
	require.NoError(t, err)
	handler := newRecordingHandler(total)
	processor := newGatedProcessor[valueEvent](rb, handler)
	stop := startProcessor(t, processor)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := int64(0); i < perProducer; i++ {
				seq, nextErr := rb.Next(1)
				if nextErr != nil {
					t.Error(nextErr)
					return
				}
				event := rb.Get(seq)
				event.producer = p
				event.value = i
				rb.Publish(seq)
			}
		}()
	}
	wg.Wait()

	select {
	case <-handler.done:
	case <-time.After(30 * time.Second):
		t.Fatal("consumer did not drain all producers")
	}
	stop()

	records := handler.snapshot()
	require.Len(t, records, total)
	perProducerNext := make([]int64, producers)
	for _, r := range records {
		require.Equal(t, perProducerNext[r.producer], r.value,
			"producer %d events delivered out of publish order", r.producer)
		perProducerNext[r.producer]++
	}
	for p := 0; p < producers; p++ {
		assert.EqualValues(t, perProducer, perProducerNext[p])
	}
}
