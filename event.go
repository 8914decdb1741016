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

// EventFactory produces one pre-constructed event per slot at ring
// buffer construction time. It is called exactly bufferSize times.
type EventFactory[E any] func() E

// EventTranslator fills a claimed event in place before it is
// published. The sequence is the one the event will be published under.
type EventTranslator[E any] func(event *E, sequence int64)

// DataProvider hands out the event stored under a sequence. The ring
// buffer is the canonical implementation; tests and adapters may supply
// others.
type DataProvider[E any] interface {
	// Get returns a borrow of the event at the given sequence.
	Get(sequence int64) *E
}

// EventHandler is the unit of consumer work: it is invoked once per
// event, in sequence order, on the processor's goroutine.
//
// A handler may additionally implement any of the optional capability
// interfaces below; the processor detects them once at construction.
type EventHandler[E any] interface {
	// OnEvent is called for each published event. endOfBatch is true
	// for the last event of the current drain, which is the moment to
	// flush any work amortized across the batch. A returned error is
	// routed to the processor's ExceptionHandler and the sequence is
	// skipped; it never stops the processor.
	OnEvent(event *E, sequence int64, endOfBatch bool) error
}

// LifecycleAware is implemented by handlers that want to run setup and
// teardown on the processing goroutine.
type LifecycleAware interface {
	// OnStart is called once before the first event.
	OnStart()
	// OnShutdown is called once as the processor winds down.
	OnShutdown()
}

// BatchStartAware is implemented by handlers that want to observe the
// size of each batch before its first event is dispatched.
type BatchStartAware interface {
	OnBatchStart(batchSize int64)
}

// TimeoutHandler is implemented by handlers that want to be notified
// when a timeout-capable wait strategy gives up a wait. The sequence is
// the processor's current sequence at the time of the timeout.
type TimeoutHandler interface {
	OnTimeout(sequence int64) error
}

// SequenceReportingEventHandler is implemented by handlers that need a
// direct reference to the processor's sequence, typically to mark
// progress mid-batch so upstream producers unblock earlier.
type SequenceReportingEventHandler interface {
	SetSequenceCallback(sequence *Sequence)
}

// EventProcessor is a long-running consumer unit: it owns a sequence
// and drains events from a data provider until halted. Implementations
// are driven on a caller-supplied goroutine.
type EventProcessor interface {
	// Run executes the processing loop until Halt is called. It returns
	// errorx.ErrEventProcessorRunning when the processor is already
	// running on another goroutine.
	Run() error

	// Halt signals the processor to stop after the batch in flight.
	// Safe to call from any goroutine, any number of times.
	Halt()

	// Sequence returns the processor's consumer sequence, which gates
	// the upstream producer.
	Sequence() *Sequence

	// IsRunning reports whether the processor has not yet returned to idle.
	IsRunning() bool
}
