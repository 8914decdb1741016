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
)

// SequenceBarrier gates a consumer on the producer cursor and on the
// sequences of any upstream consumers it depends on, and carries the
// cooperative shutdown signal for that consumer.
type SequenceBarrier interface {
	// WaitFor blocks until the given sequence is available and returns
	// the highest sequence that can safely be read, which may be
	// greater than the one requested. It returns errorx.ErrAlert after
	// Alert has been called and errorx.ErrTimeout when the underlying
	// wait strategy has a deadline.
	WaitFor(sequence int64) (int64, error)

	// Cursor returns the current value of the producer cursor as seen
	// by this barrier.
	Cursor() int64

	// IsAlerted reports whether the barrier is in alert state.
	IsAlerted() bool

	// Alert puts the barrier into alert state, waking any waiting
	// consumer so it can observe the state change.
	Alert()

	// ClearAlert leaves the alert state.
	ClearAlert()

	// CheckAlert returns errorx.ErrAlert when the barrier is alerted,
	// nil otherwise. Wait strategies call it on every spin iteration.
	CheckAlert() error
}

// processingSequenceBarrier is handed out by a Sequencer; it couples
// the producer cursor, the consumer's dependency group and the wait
// strategy. For sequencers that may publish out of order it caps the
// waited-for value with the highest contiguously published sequence so
// an unpublished slot is never exposed.
type processingSequenceBarrier struct {
	sequencer    Sequencer
	waitStrategy WaitStrategy
	cursor       *Sequence
	dependents   Gate
	alerted      atomic.Bool
}

func newProcessingSequenceBarrier(sequencer Sequencer, waitStrategy WaitStrategy, cursor *Sequence, dependents []*Sequence) *processingSequenceBarrier {
	b := &processingSequenceBarrier{
		sequencer:    sequencer,
		waitStrategy: waitStrategy,
		cursor:       cursor,
	}
	if len(dependents) == 0 {
		b.dependents = cursor
	} else {
		b.dependents = newFixedSequenceGroup(dependents)
	}
	return b
}

func (b *processingSequenceBarrier) WaitFor(sequence int64) (int64, error) {
	if err := b.CheckAlert(); err != nil {
		return 0, err
	}

	availableSequence, err := b.waitStrategy.WaitFor(sequence, b.cursor, b.dependents, b)
	if err != nil {
		return 0, err
	}
	if availableSequence < sequence {
		return availableSequence, nil
	}
	return b.sequencer.HighestPublishedSequence(sequence, availableSequence), nil
}

func (b *processingSequenceBarrier) Cursor() int64 {
	return b.cursor.Get()
}

func (b *processingSequenceBarrier) IsAlerted() bool {
	return b.alerted.Load()
}

func (b *processingSequenceBarrier) Alert() {
	b.alerted.Store(true)
	b.waitStrategy.SignalAllWhenBlocking()
}

func (b *processingSequenceBarrier) ClearAlert() {
	b.alerted.Store(false)
}

func (b *processingSequenceBarrier) CheckAlert() error {
	if b.alerted.Load() {
		return errorx.ErrAlert
	}
	return nil
}
