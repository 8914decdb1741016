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
	"golang.org/x/sys/cpu"

	errorx "github.com/shui4/disruptor/pkg/errors"
)

// RingBuffer is a preallocated ring of events coordinated by a
// Sequencer. It is both the producer handle (claim, translate, publish)
// and the consumers' DataProvider. Slots are constructed once by the
// EventFactory and mutated in place for the lifetime of the buffer; the
// slot array never reallocates, so the hot path performs no allocation.
type RingBuffer[E any] struct {
	_          cpu.CacheLinePad
	indexMask  int64
	entries    []E
	bufferSize int
	sequencer  Sequencer
	_          cpu.CacheLinePad
}

// NewRingBuffer instantiates a RingBuffer that hosts the given
// sequencer and fills every slot with an event from factory.
func NewRingBuffer[E any](factory EventFactory[E], sequencer Sequencer) (*RingBuffer[E], error) {
	if factory == nil {
		return nil, errorx.ErrMissingEventFactory
	}
	bufferSize := sequencer.BufferSize()
	entries := make([]E, bufferSize)
	for i := range entries {
		entries[i] = factory()
	}
	return &RingBuffer[E]{
		indexMask:  int64(bufferSize) - 1,
		entries:    entries,
		bufferSize: bufferSize,
		sequencer:  sequencer,
	}, nil
}

// NewSingleProducerRingBuffer instantiates a RingBuffer backed by a
// SingleProducerSequencer.
func NewSingleProducerRingBuffer[E any](factory EventFactory[E], bufferSize int, waitStrategy WaitStrategy) (*RingBuffer[E], error) {
	sequencer, err := NewSingleProducerSequencer(bufferSize, waitStrategy)
	if err != nil {
		return nil, err
	}
	return NewRingBuffer(factory, sequencer)
}

// NewMultiProducerRingBuffer instantiates a RingBuffer backed by a
// MultiProducerSequencer.
func NewMultiProducerRingBuffer[E any](factory EventFactory[E], bufferSize int, waitStrategy WaitStrategy) (*RingBuffer[E], error) {
	sequencer, err := NewMultiProducerSequencer(bufferSize, waitStrategy)
	if err != nil {
		return nil, err
	}
	return NewRingBuffer(factory, sequencer)
}

// Get returns a borrow of the event stored under the given sequence.
// Producers may only touch it between claim and publish, consumers only
// between a barrier grant and their sequence update.
func (rb *RingBuffer[E]) Get(sequence int64) *E {
	return &rb.entries[sequence&rb.indexMask]
}

// BufferSize returns the capacity of the ring.
func (rb *RingBuffer[E]) BufferSize() int {
	return rb.bufferSize
}

// Cursor returns the current producer cursor.
func (rb *RingBuffer[E]) Cursor() int64 {
	return rb.sequencer.Cursor()
}

// Next claims the next n contiguous sequences, blocking while the ring
// is full. See Sequencer.Next.
func (rb *RingBuffer[E]) Next(n int) (int64, error) {
	return rb.sequencer.Next(n)
}

// TryNext claims the next n contiguous sequences without blocking,
// failing with errorx.ErrInsufficientCapacity when the ring is full.
func (rb *RingBuffer[E]) TryNext(n int) (int64, error) {
	return rb.sequencer.TryNext(n)
}

// Publish marks the given sequence as available to consumers.
func (rb *RingBuffer[E]) Publish(sequence int64) {
	rb.sequencer.Publish(sequence)
}

// PublishRange marks the inclusive range [lo, hi] as available.
func (rb *RingBuffer[E]) PublishRange(lo, hi int64) {
	rb.sequencer.PublishRange(lo, hi)
}

// PublishEvent claims the next sequence, lets translator fill the slot
// and publishes it. The publish happens even if the translator panics,
// otherwise a half-claimed sequence would gate all later producers
// forever; consumers then see the slot with whatever contents it held
// when the translator panicked.
func (rb *RingBuffer[E]) PublishEvent(translator EventTranslator[E]) error {
	sequence, err := rb.sequencer.Next(1)
	if err != nil {
		return err
	}
	defer rb.sequencer.Publish(sequence)
	translator(rb.Get(sequence), sequence)
	return nil
}

// TryPublishEvent is the non-blocking form of PublishEvent; it returns
// errorx.ErrInsufficientCapacity when the ring is full.
func (rb *RingBuffer[E]) TryPublishEvent(translator EventTranslator[E]) error {
	sequence, err := rb.sequencer.TryNext(1)
	if err != nil {
		return err
	}
	defer rb.sequencer.Publish(sequence)
	translator(rb.Get(sequence), sequence)
	return nil
}

// PublishEvents claims one sequence per translator and publishes the
// whole range at once.
func (rb *RingBuffer[E]) PublishEvents(translators ...EventTranslator[E]) error {
	n := len(translators)
	if n == 0 {
		return nil
	}
	hi, err := rb.sequencer.Next(n)
	if err != nil {
		return err
	}
	lo := hi - int64(n) + 1
	defer rb.sequencer.PublishRange(lo, hi)
	for i, translator := range translators {
		sequence := lo + int64(i)
		translator(rb.Get(sequence), sequence)
	}
	return nil
}

// HasAvailableCapacity reports whether n more events can be claimed
// without overrunning the slowest consumer.
func (rb *RingBuffer[E]) HasAvailableCapacity(n int) bool {
	return rb.sequencer.HasAvailableCapacity(n)
}

// RemainingCapacity returns the number of slots that can still be
// claimed.
func (rb *RingBuffer[E]) RemainingCapacity() int64 {
	return rb.sequencer.RemainingCapacity()
}

// IsAvailable reports whether the given sequence has been published.
func (rb *RingBuffer[E]) IsAvailable(sequence int64) bool {
	return rb.sequencer.IsAvailable(sequence)
}

// AddGatingSequences registers consumer sequences the producer must not
// overtake.
func (rb *RingBuffer[E]) AddGatingSequences(gatingSequences ...*Sequence) {
	rb.sequencer.AddGatingSequences(gatingSequences...)
}

// RemoveGatingSequence deregisters a gating sequence.
func (rb *RingBuffer[E]) RemoveGatingSequence(sequence *Sequence) bool {
	return rb.sequencer.RemoveGatingSequence(sequence)
}

// MinimumGatingSequence returns the minimum of the registered gating
// sequences and the cursor.
func (rb *RingBuffer[E]) MinimumGatingSequence() int64 {
	return rb.sequencer.MinimumSequence()
}

// NewBarrier creates a barrier gating on the producer cursor and the
// given upstream consumer sequences.
func (rb *RingBuffer[E]) NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier {
	return rb.sequencer.NewBarrier(sequencesToTrack...)
}
