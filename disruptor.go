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
	"context"
	"runtime"
	"sync/atomic"

	errorx "github.com/shui4/disruptor/pkg/errors"
	"github.com/shui4/disruptor/pkg/logging"
	"github.com/shui4/disruptor/pkg/pool/goroutine"
)

// Disruptor is the wiring facade over the core: it owns a ring buffer,
// builds the consumer dependency graph from handler declarations and
// runs one BatchEventProcessor per handler on a goroutine pool. All of
// the hard coordination lives in the core types; the facade only keeps
// the bookkeeping straight.
//
// Handlers registered through HandleEventsWith run in parallel off the
// producer cursor; chaining with Then gates the next group on the
// previous one, forming a DAG with the producer as the source.
type Disruptor[E any] struct {
	ringBuffer       *RingBuffer[E]
	pool             *goroutine.Pool
	processors       []EventProcessor
	exceptionHandler *ExceptionHandlerWrapper[E]
	started          atomic.Bool
	halted           atomic.Bool
}

// EventHandlerGroup tracks the consumer sequences of one wiring stage
// so a later stage can gate on them.
type EventHandlerGroup[E any] struct {
	disruptor *Disruptor[E]
	sequences []*Sequence
}

// NewDisruptor builds a Disruptor around a fresh ring buffer of the
// given size, with every slot pre-constructed by factory.
func NewDisruptor[E any](factory EventFactory[E], bufferSize int, options ...Option) (*Disruptor[E], error) {
	opts := initOptions(options...)

	var (
		ringBuffer *RingBuffer[E]
		err        error
	)
	switch opts.ProducerType {
	case MultiProducer:
		ringBuffer, err = NewMultiProducerRingBuffer(factory, bufferSize, opts.WaitStrategy)
	default:
		ringBuffer, err = NewSingleProducerRingBuffer(factory, bufferSize, opts.WaitStrategy)
	}
	if err != nil {
		return nil, err
	}

	return &Disruptor[E]{
		ringBuffer:       ringBuffer,
		pool:             opts.Pool,
		exceptionHandler: NewExceptionHandlerWrapper[E](),
	}, nil
}

// RingBuffer returns the underlying ring buffer, the handle producers
// publish through.
func (d *Disruptor[E]) RingBuffer() *RingBuffer[E] {
	return d.ringBuffer
}

// SetDefaultExceptionHandler routes faults from every processor built
// by this facade to the given handler, including processors that are
// already running.
func (d *Disruptor[E]) SetDefaultExceptionHandler(handler ExceptionHandler[E]) error {
	if handler == nil {
		return errorx.ErrNilExceptionHandler
	}
	d.exceptionHandler.SwitchTo(handler)
	return nil
}

// HandleEventsWith registers one processor per handler, all gated
// directly on the producer cursor.
func (d *Disruptor[E]) HandleEventsWith(handlers ...EventHandler[E]) (*EventHandlerGroup[E], error) {
	return d.createProcessors(nil, handlers)
}

// Then registers one processor per handler, gated on every handler of
// this group. The new group's sequences replace this group's as the
// producer's gating set, since the downstream consumers are now the
// slowest point of the graph.
func (g *EventHandlerGroup[E]) Then(handlers ...EventHandler[E]) (*EventHandlerGroup[E], error) {
	return g.disruptor.createProcessors(g.sequences, handlers)
}

func (d *Disruptor[E]) createProcessors(dependencies []*Sequence, handlers []EventHandler[E]) (*EventHandlerGroup[E], error) {
	if d.started.Load() {
		return nil, errorx.ErrDisruptorStarted
	}
	if len(handlers) == 0 {
		return nil, errorx.ErrEmptyHandlerGroup
	}

	barrier := d.ringBuffer.NewBarrier(dependencies...)
	sequences := make([]*Sequence, 0, len(handlers))
	for _, handler := range handlers {
		processor := NewBatchEventProcessor[E](d.ringBuffer, barrier, handler)
		if err := processor.SetExceptionHandler(d.exceptionHandler); err != nil {
			return nil, err
		}
		d.processors = append(d.processors, processor)
		sequences = append(sequences, processor.Sequence())
	}

	d.ringBuffer.AddGatingSequences(sequences...)
	for _, dependency := range dependencies {
		d.ringBuffer.RemoveGatingSequence(dependency)
	}

	return &EventHandlerGroup[E]{disruptor: d, sequences: sequences}, nil
}

// Start submits every registered processor to the pool. It must be
// called exactly once, after the whole handler graph has been declared.
func (d *Disruptor[E]) Start() error {
	if d.started.Swap(true) {
		return errorx.ErrDisruptorStarted
	}
	for _, processor := range d.processors {
		p := processor
		if err := d.pool.Submit(func() {
			logging.Error(p.Run())
		}); err != nil {
			return err
		}
	}
	return nil
}

// PublishEvent claims the next sequence, fills it with translator and
// publishes it, blocking while the ring is full.
func (d *Disruptor[E]) PublishEvent(translator EventTranslator[E]) error {
	return d.ringBuffer.PublishEvent(translator)
}

// TryPublishEvent is the non-blocking form of PublishEvent.
func (d *Disruptor[E]) TryPublishEvent(translator EventTranslator[E]) error {
	return d.ringBuffer.TryPublishEvent(translator)
}

// Halt stops every processor without waiting for in-flight events to
// drain.
func (d *Disruptor[E]) Halt() {
	if d.halted.Swap(true) {
		return
	}
	for _, processor := range d.processors {
		processor.Halt()
	}
}

// Shutdown waits until all consumers have caught up with the producer
// cursor, then halts them. The context bounds the wait; on expiry the
// processors are halted anyway and the context error is returned.
func (d *Disruptor[E]) Shutdown(ctx context.Context) error {
	defer d.Halt()
	for d.hasBacklog() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			runtime.Gosched()
		}
	}
	return nil
}

func (d *Disruptor[E]) hasBacklog() bool {
	return d.ringBuffer.MinimumGatingSequence() < d.ringBuffer.Cursor()
}
