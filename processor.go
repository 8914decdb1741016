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
	"fmt"
	"sync/atomic"

	errorx "github.com/shui4/disruptor/pkg/errors"
)

const (
	processorIdle int32 = iota
	processorHalted
	processorRunning
)

// BatchEventProcessor drives an EventHandler from a SequenceBarrier:
// it waits for the next sequence, drains every event up to the highest
// available one in a single batch, then moves its own sequence forward,
// which in turn ungates the producer. Batching amortizes the
// cross-goroutine synchronization over all events that piled up while
// the handler was busy.
//
// The processor owns its sequence and is driven on exactly one
// goroutine at a time; Halt may be called from anywhere.
type BatchEventProcessor[E any] struct {
	dataProvider    DataProvider[E]
	sequenceBarrier SequenceBarrier
	eventHandler    EventHandler[E]
	sequence        *Sequence
	running         atomic.Int32

	// exceptionHandler must be configured before Run; it is read
	// without synchronization on the hot path.
	exceptionHandler ExceptionHandler[E]

	// Optional capabilities, detected once at construction.
	batchStartAware BatchStartAware
	timeoutHandler  TimeoutHandler
}

// NewBatchEventProcessor constructs a processor that dispatches events
// from dataProvider to eventHandler as the barrier makes them
// available. Optional handler capabilities (LifecycleAware,
// BatchStartAware, TimeoutHandler, SequenceReportingEventHandler) are
// detected here, once, so the hot loop pays no type assertions.
func NewBatchEventProcessor[E any](dataProvider DataProvider[E], sequenceBarrier SequenceBarrier, eventHandler EventHandler[E]) *BatchEventProcessor[E] {
	p := &BatchEventProcessor[E]{
		dataProvider:    dataProvider,
		sequenceBarrier: sequenceBarrier,
		eventHandler:    eventHandler,
		sequence:        NewSequence(InitialSequenceValue),
	}
	if h, ok := eventHandler.(SequenceReportingEventHandler); ok {
		h.SetSequenceCallback(p.sequence)
	}
	if h, ok := eventHandler.(BatchStartAware); ok {
		p.batchStartAware = h
	}
	if h, ok := eventHandler.(TimeoutHandler); ok {
		p.timeoutHandler = h
	}
	return p
}

// Sequence implements EventProcessor.
func (p *BatchEventProcessor[E]) Sequence() *Sequence {
	return p.sequence
}

// Halt implements EventProcessor.
func (p *BatchEventProcessor[E]) Halt() {
	p.running.Store(processorHalted)
	p.sequenceBarrier.Alert()
}

// IsRunning implements EventProcessor.
func (p *BatchEventProcessor[E]) IsRunning() bool {
	return p.running.Load() != processorIdle
}

// SetExceptionHandler replaces the exception handler routing faults out
// of the processing loop. Must be called before Run. A nil handler
// fails with errorx.ErrNilExceptionHandler.
func (p *BatchEventProcessor[E]) SetExceptionHandler(handler ExceptionHandler[E]) error {
	if handler == nil {
		return errorx.ErrNilExceptionHandler
	}
	p.exceptionHandler = handler
	return nil
}

// Run implements EventProcessor. It is ok to run again after a halt;
// running concurrently on two goroutines fails with
// errorx.ErrEventProcessorRunning.
func (p *BatchEventProcessor[E]) Run() error {
	if !p.running.CompareAndSwap(processorIdle, processorRunning) {
		if p.running.Load() == processorRunning {
			return errorx.ErrEventProcessorRunning
		}
		// Halted before it ever started: notify lifecycle and leave.
		p.notifyStart()
		p.notifyShutdown()
		p.running.Store(processorIdle)
		return nil
	}

	p.sequenceBarrier.ClearAlert()
	p.notifyStart()
	defer func() {
		p.notifyShutdown()
		p.running.Store(processorIdle)
	}()
	if p.running.Load() == processorRunning {
		p.processEvents()
	}
	return nil
}

func (p *BatchEventProcessor[E]) processEvents() {
	var event *E
	nextSequence := p.sequence.Get() + 1

	for {
		availableSequence, err := p.sequenceBarrier.WaitFor(nextSequence)
		switch {
		case err == nil:
		case errors.Is(err, errorx.ErrTimeout):
			p.notifyTimeout(p.sequence.Get())
			continue
		case errors.Is(err, errorx.ErrAlert):
			if p.running.Load() != processorRunning {
				return
			}
			continue
		default:
			p.handleEventError(err, nextSequence, nil)
			p.sequence.Set(nextSequence)
			nextSequence++
			continue
		}

		// A capped multi-producer barrier can grant less than asked for;
		// an empty grant is not a batch.
		if availableSequence < nextSequence {
			continue
		}

		if batchErr := p.notifyBatchStart(availableSequence - nextSequence + 1); batchErr != nil {
			// Skip the faulting sequence so a poisoned slot cannot
			// stall the pipeline behind a stuck gating sequence.
			p.handleEventError(batchErr, nextSequence, nil)
			p.sequence.Set(nextSequence)
			nextSequence++
			continue
		}

		faulted := false
		for nextSequence <= availableSequence {
			event = p.dataProvider.Get(nextSequence)
			if dispatchErr := p.dispatch(event, nextSequence, nextSequence == availableSequence); dispatchErr != nil {
				p.handleEventError(dispatchErr, nextSequence, event)
				p.sequence.Set(nextSequence)
				nextSequence++
				faulted = true
				break
			}
			nextSequence++
		}
		if faulted {
			continue
		}

		p.sequence.Set(availableSequence)
	}
}

// dispatch invokes the handler, converting a panic into an error so a
// single bad event cannot kill the consumer goroutine.
func (p *BatchEventProcessor[E]) dispatch(event *E, sequence int64, endOfBatch bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("disruptor: event handler panicked: %v", r)
		}
	}()
	return p.eventHandler.OnEvent(event, sequence, endOfBatch)
}

func (p *BatchEventProcessor[E]) notifyBatchStart(batchSize int64) (err error) {
	if p.batchStartAware == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("disruptor: batch start handler panicked: %v", r)
		}
	}()
	p.batchStartAware.OnBatchStart(batchSize)
	return nil
}

func (p *BatchEventProcessor[E]) notifyTimeout(availableSequence int64) {
	if p.timeoutHandler == nil {
		return
	}
	if err := p.invokeTimeout(availableSequence); err != nil {
		p.handleEventError(err, availableSequence, nil)
	}
}

func (p *BatchEventProcessor[E]) invokeTimeout(availableSequence int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("disruptor: timeout handler panicked: %v", r)
		}
	}()
	return p.timeoutHandler.OnTimeout(availableSequence)
}

func (p *BatchEventProcessor[E]) notifyStart() {
	lifecycle, ok := p.eventHandler.(LifecycleAware)
	if !ok {
		return
	}
	if err := invokeLifecycle(lifecycle.OnStart); err != nil {
		p.currentExceptionHandler().HandleOnStartError(err)
	}
}

func (p *BatchEventProcessor[E]) notifyShutdown() {
	lifecycle, ok := p.eventHandler.(LifecycleAware)
	if !ok {
		return
	}
	if err := invokeLifecycle(lifecycle.OnShutdown); err != nil {
		p.currentExceptionHandler().HandleOnShutdownError(err)
	}
}

func invokeLifecycle(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("disruptor: lifecycle handler panicked: %v", r)
		}
	}()
	fn()
	return nil
}

func (p *BatchEventProcessor[E]) handleEventError(err error, sequence int64, event *E) {
	p.currentExceptionHandler().HandleEventError(err, sequence, event)
}

func (p *BatchEventProcessor[E]) currentExceptionHandler() ExceptionHandler[E] {
	if p.exceptionHandler != nil {
		return p.exceptionHandler
	}
	return NewLoggingExceptionHandler[E]()
}
