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
	"sync/atomic"

	errorx "github.com/shui4/disruptor/pkg/errors"
	"github.com/shui4/disruptor/pkg/math"
)

// Cursored exposes the current producer cursor.
type Cursored interface {
	// Cursor returns the current cursor value.
	Cursor() int64
}

// Sequencer claims sequence ranges for producers, publishes them, and
// tracks the downstream gating sequences that prevent the ring from
// wrapping over unconsumed slots.
type Sequencer interface {
	Cursored

	// BufferSize returns the capacity of the ring this sequencer coordinates.
	BufferSize() int

	// HasAvailableCapacity reports whether the buffer can accept
	// requiredCapacity more claims without overrunning the slowest
	// gating sequence.
	HasAvailableCapacity(requiredCapacity int) bool

	// RemainingCapacity returns the number of slots that can still be
	// claimed before wrap prevention kicks in.
	RemainingCapacity() int64

	// Next reserves the next n contiguous sequences and returns the
	// highest of them, blocking until wrap prevention is satisfied.
	// n must be in [1, BufferSize], otherwise errorx.ErrArgumentOutOfRange.
	Next(n int) (int64, error)

	// TryNext is the non-blocking form of Next; it returns
	// errorx.ErrInsufficientCapacity when the claim would overrun the
	// slowest gating sequence.
	TryNext(n int) (int64, error)

	// Publish marks the given sequence as available for consumers.
	// It must be called exactly once per claimed sequence.
	Publish(sequence int64)

	// PublishRange marks the inclusive range [lo, hi] as available.
	PublishRange(lo, hi int64)

	// IsAvailable reports whether the given sequence has been published.
	IsAvailable(sequence int64) bool

	// HighestPublishedSequence returns the highest sequence h in
	// [lowerBound, availableSequence] such that every sequence up to h
	// has been published, or lowerBound-1 when lowerBound itself is
	// unpublished.
	HighestPublishedSequence(lowerBound, availableSequence int64) int64

	// Claim forces the claim position to a specific sequence. This is
	// an administrative primitive for recovery tooling only: it must
	// never race with Next, TryNext or Publish.
	Claim(sequence int64)

	// AddGatingSequences registers downstream consumer sequences that
	// producers must not overtake by more than the buffer size.
	AddGatingSequences(gatingSequences ...*Sequence)

	// RemoveGatingSequence deregisters a gating sequence, reporting
	// whether it was found.
	RemoveGatingSequence(sequence *Sequence) bool

	// MinimumSequence returns the minimum of the gating sequences and
	// the cursor.
	MinimumSequence() int64

	// NewBarrier creates a SequenceBarrier gating on this sequencer's
	// cursor and on the given upstream consumer sequences.
	NewBarrier(sequencesToTrack ...*Sequence) SequenceBarrier
}

// sequencerBase carries the state shared by both sequencer variants:
// the cursor, the wait strategy and the copy-on-write list of gating
// sequences. Adds and removes swap in a fresh slice so readers on the
// claim path never take a lock.
type sequencerBase struct {
	bufferSize      int
	waitStrategy    WaitStrategy
	cursor          *Sequence
	gatingSequences atomic.Pointer[[]*Sequence]
}

func newSequencerBase(bufferSize int, waitStrategy WaitStrategy) (*sequencerBase, error) {
	if bufferSize < 1 {
		return nil, errorx.ErrBufferSizeTooSmall
	}
	if !math.IsPowerOfTwo(bufferSize) {
		return nil, errorx.ErrBufferSizeNotPowerOfTwo
	}
	if waitStrategy == nil {
		return nil, errorx.ErrMissingWaitStrategy
	}
	base := &sequencerBase{
		bufferSize:   bufferSize,
		waitStrategy: waitStrategy,
		cursor:       NewSequence(InitialSequenceValue),
	}
	base.gatingSequences.Store(&[]*Sequence{})
	return base, nil
}

func (s *sequencerBase) BufferSize() int {
	return s.bufferSize
}

func (s *sequencerBase) Cursor() int64 {
	return s.cursor.Get()
}

func (s *sequencerBase) loadGatingSequences() []*Sequence {
	return *s.gatingSequences.Load()
}

// AddGatingSequences registers the given sequences, setting each to the
// current cursor so a late-joining consumer does not stall the producer
// at −1.
func (s *sequencerBase) AddGatingSequences(gatingSequences ...*Sequence) {
	for {
		current := s.gatingSequences.Load()
		updated := make([]*Sequence, len(*current), len(*current)+len(gatingSequences))
		copy(updated, *current)
		cursorValue := s.cursor.Get()
		for _, seq := range gatingSequences {
			seq.Set(cursorValue)
			updated = append(updated, seq)
		}
		if s.gatingSequences.CompareAndSwap(current, &updated) {
			return
		}
	}
}

func (s *sequencerBase) RemoveGatingSequence(sequence *Sequence) bool {
	for {
		current := s.gatingSequences.Load()
		updated := make([]*Sequence, 0, len(*current))
		found := false
		for _, seq := range *current {
			if seq == sequence {
				found = true
				continue
			}
			updated = append(updated, seq)
		}
		if !found {
			return false
		}
		if s.gatingSequences.CompareAndSwap(current, &updated) {
			return true
		}
	}
}

func (s *sequencerBase) MinimumSequence() int64 {
	return minimumSequence(s.loadGatingSequences(), s.cursor.Get())
}
