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
	"runtime"
	"sync/atomic"

	errorx "github.com/shui4/disruptor/pkg/errors"
	"github.com/shui4/disruptor/pkg/math"
)

// MultiProducerSequencer coordinates claims from any number of
// concurrent producer goroutines. Sequence ranges are claimed by CAS on
// the cursor, which means the cursor runs ahead of what has actually
// been published. Publication is therefore recorded per slot in
// availableBuffer: each cell holds the round number (sequence >> log2
// of the buffer size) that most recently published into that slot, so a
// sequence is published iff its cell matches its round. This avoids any
// shared publish cursor between producers while preserving exact
// ordering for readers.
type MultiProducerSequencer struct {
	*sequencerBase

	gatingSequenceCache *Sequence
	availableBuffer     []atomic.Int32
	indexMask           int64
	indexShift          uint
}

// NewMultiProducerSequencer instantiates a MultiProducerSequencer with
// the given buffer size (a power of two) and wait strategy.
func NewMultiProducerSequencer(bufferSize int, waitStrategy WaitStrategy) (*MultiProducerSequencer, error) {
	base, err := newSequencerBase(bufferSize, waitStrategy)
	if err != nil {
		return nil, err
	}
	s := &MultiProducerSequencer{
		sequencerBase:       base,
		gatingSequenceCache: NewSequence(InitialSequenceValue),
		availableBuffer:     make([]atomic.Int32, bufferSize),
		indexMask:           int64(bufferSize) - 1,
		indexShift:          uint(math.Log2(bufferSize)),
	}
	for i := range s.availableBuffer {
		s.availableBuffer[i].Store(-1)
	}
	return s, nil
}

// HasAvailableCapacity implements Sequencer.
func (s *MultiProducerSequencer) HasAvailableCapacity(requiredCapacity int) bool {
	return s.hasAvailableCapacity(requiredCapacity, s.cursor.Get())
}

func (s *MultiProducerSequencer) hasAvailableCapacity(requiredCapacity int, cursorValue int64) bool {
	wrapPoint := (cursorValue + int64(requiredCapacity)) - int64(s.bufferSize)
	cachedGatingSequence := s.gatingSequenceCache.Get()

	if wrapPoint > cachedGatingSequence || cachedGatingSequence > cursorValue {
		minSequence := minimumSequence(s.loadGatingSequences(), cursorValue)
		s.gatingSequenceCache.Set(minSequence)
		return wrapPoint <= minSequence
	}
	return true
}

// Next implements Sequencer. Contending producers race on the cursor
// CAS; the winner owns the claimed range. A producer that is wrap-gated
// yields briefly and retries rather than spinning hot.
func (s *MultiProducerSequencer) Next(n int) (int64, error) {
	if n < 1 || n > s.bufferSize {
		return 0, errorx.ErrArgumentOutOfRange
	}

	for {
		current := s.cursor.Get()
		next := current + int64(n)

		wrapPoint := next - int64(s.bufferSize)
		cachedGatingSequence := s.gatingSequenceCache.Get()

		if wrapPoint > cachedGatingSequence || cachedGatingSequence > current {
			gatingSequence := minimumSequence(s.loadGatingSequences(), current)
			if wrapPoint > gatingSequence {
				runtime.Gosched()
				continue
			}
			s.gatingSequenceCache.Set(gatingSequence)
		} else if s.cursor.CompareAndSet(current, next) {
			return next, nil
		}
	}
}

// TryNext implements Sequencer.
func (s *MultiProducerSequencer) TryNext(n int) (int64, error) {
	if n < 1 || n > s.bufferSize {
		return 0, errorx.ErrArgumentOutOfRange
	}

	for {
		current := s.cursor.Get()
		next := current + int64(n)

		if !s.hasAvailableCapacity(n, current) {
			return 0, errorx.ErrInsufficientCapacity
		}
		if s.cursor.CompareAndSet(current, next) {
			return next, nil
		}
	}
}

// RemainingCapacity implements Sequencer.
func (s *MultiProducerSequencer) RemainingCapacity() int64 {
	produced := s.cursor.Get()
	consumed := minimumSequence(s.loadGatingSequences(), produced)
	return int64(s.bufferSize) - (produced - consumed)
}

// Publish implements Sequencer. The availability store publishes the
// slot payload written before it; readers pair it with the acquire load
// in IsAvailable.
func (s *MultiProducerSequencer) Publish(sequence int64) {
	s.setAvailable(sequence)
	s.waitStrategy.SignalAllWhenBlocking()
}

// PublishRange implements Sequencer.
func (s *MultiProducerSequencer) PublishRange(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.waitStrategy.SignalAllWhenBlocking()
}

// IsAvailable implements Sequencer.
func (s *MultiProducerSequencer) IsAvailable(sequence int64) bool {
	return s.availableBuffer[sequence&s.indexMask].Load() == s.availabilityFlag(sequence)
}

// HighestPublishedSequence implements Sequencer. With concurrent
// producers publish order differs from claim order, so the scan stops
// at the first gap and exposes only the contiguous published prefix.
func (s *MultiProducerSequencer) HighestPublishedSequence(lowerBound, availableSequence int64) int64 {
	for sequence := lowerBound; sequence <= availableSequence; sequence++ {
		if !s.IsAvailable(sequence) {
			return sequence - 1
		}
	}
	return availableSequence
}

// Claim implements Sequencer. Administrative use only; see Sequencer.
func (s *MultiProducerSequencer) Claim(sequence int64) {
	s.cursor.Set(sequence)
}

// NewBarrier implements Sequencer.
func (s *MultiProducerSequencer) NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier {
	return newProcessingSequenceBarrier(s, s.waitStrategy, s.cursor, sequencesToTrack)
}

func (s *MultiProducerSequencer) setAvailable(sequence int64) {
	s.availableBuffer[sequence&s.indexMask].Store(s.availabilityFlag(sequence))
}

func (s *MultiProducerSequencer) availabilityFlag(sequence int64) int32 {
	return int32(sequence >> s.indexShift)
}
