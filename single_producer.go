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

	"golang.org/x/sys/cpu"

	errorx "github.com/shui4/disruptor/pkg/errors"
)

// SingleProducerSequencer coordinates claims from exactly one producer
// goroutine. It is not safe for concurrent producers: nextValue and
// cachedValue are plain fields read and written only by the owning
// goroutine, which is what makes the claim path branch-and-add cheap.
//
// The cursor is only advanced at publish time, so consumers never
// observe a claimed-but-unwritten slot.
type SingleProducerSequencer struct {
	*sequencerBase

	_ cpu.CacheLinePad
	// nextValue is the last claimed sequence; cachedValue caches the
	// minimum gating sequence from the previous wrap check.
	nextValue   int64
	cachedValue int64
	_           cpu.CacheLinePad
}

// NewSingleProducerSequencer instantiates a SingleProducerSequencer
// with the given buffer size (a power of two) and wait strategy.
func NewSingleProducerSequencer(bufferSize int, waitStrategy WaitStrategy) (*SingleProducerSequencer, error) {
	base, err := newSequencerBase(bufferSize, waitStrategy)
	if err != nil {
		return nil, err
	}
	return &SingleProducerSequencer{
		sequencerBase: base,
		nextValue:     InitialSequenceValue,
		cachedValue:   InitialSequenceValue,
	}, nil
}

// HasAvailableCapacity implements Sequencer.
func (s *SingleProducerSequencer) HasAvailableCapacity(requiredCapacity int) bool {
	nextValue := s.nextValue
	wrapPoint := (nextValue + int64(requiredCapacity)) - int64(s.bufferSize)
	cachedGatingSequence := s.cachedValue

	if wrapPoint > cachedGatingSequence || cachedGatingSequence > nextValue {
		minSequence := minimumSequence(s.loadGatingSequences(), nextValue)
		s.cachedValue = minSequence
		return wrapPoint <= minSequence
	}
	return true
}

// Next implements Sequencer. It blocks while the claim would overtake
// the slowest gating sequence, retrying after a brief yield.
func (s *SingleProducerSequencer) Next(n int) (int64, error) {
	if n < 1 || n > s.bufferSize {
		return 0, errorx.ErrArgumentOutOfRange
	}

	nextValue := s.nextValue
	nextSequence := nextValue + int64(n)
	wrapPoint := nextSequence - int64(s.bufferSize)
	cachedGatingSequence := s.cachedValue

	if wrapPoint > cachedGatingSequence || cachedGatingSequence > nextValue {
		// Go atomics are sequentially consistent, so the gating reads
		// below are already ordered after the producer's prior writes
		// and no explicit store-load fence is needed here.
		minSequence := minimumSequence(s.loadGatingSequences(), nextValue)
		for wrapPoint > minSequence {
			runtime.Gosched()
			minSequence = minimumSequence(s.loadGatingSequences(), nextValue)
		}
		s.cachedValue = minSequence
	}

	s.nextValue = nextSequence
	return nextSequence, nil
}

// TryNext implements Sequencer.
func (s *SingleProducerSequencer) TryNext(n int) (int64, error) {
	if n < 1 || n > s.bufferSize {
		return 0, errorx.ErrArgumentOutOfRange
	}
	if !s.HasAvailableCapacity(n) {
		return 0, errorx.ErrInsufficientCapacity
	}
	s.nextValue += int64(n)
	return s.nextValue, nil
}

// RemainingCapacity implements Sequencer.
func (s *SingleProducerSequencer) RemainingCapacity() int64 {
	nextValue := s.nextValue
	consumed := minimumSequence(s.loadGatingSequences(), nextValue)
	return int64(s.bufferSize) - (nextValue - consumed)
}

// Publish implements Sequencer. The cursor store publishes every slot
// write that preceded it on the producer goroutine.
func (s *SingleProducerSequencer) Publish(sequence int64) {
	s.cursor.Set(sequence)
	s.waitStrategy.SignalAllWhenBlocking()
}

// PublishRange implements Sequencer. Publication is contiguous by
// construction, so publishing hi covers the whole range.
func (s *SingleProducerSequencer) PublishRange(_, hi int64) {
	s.Publish(hi)
}

// IsAvailable implements Sequencer.
func (s *SingleProducerSequencer) IsAvailable(sequence int64) bool {
	return sequence <= s.cursor.Get()
}

// HighestPublishedSequence implements Sequencer.
func (s *SingleProducerSequencer) HighestPublishedSequence(_, availableSequence int64) int64 {
	return availableSequence
}

// Claim implements Sequencer. Administrative use only; see Sequencer.
func (s *SingleProducerSequencer) Claim(sequence int64) {
	s.nextValue = sequence
}

// NewBarrier implements Sequencer.
func (s *SingleProducerSequencer) NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier {
	return newProcessingSequenceBarrier(s, s.waitStrategy, s.cursor, sequencesToTrack)
}
