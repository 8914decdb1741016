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
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// InitialSequenceValue is the starting point of every cursor and
// consumer sequence.
const InitialSequenceValue int64 = -1

// Gate is a read-only view over one or more sequences. Wait strategies
// block on a Gate without caring whether it is a single sequence or the
// minimum of a dependency group.
type Gate interface {
	// Get returns the current value of the gate.
	Get() int64
}

// Sequence is a monotonically non-decreasing 64-bit counter used to
// track progress of producers and consumers through the ring buffer.
// The value is padded on both sides with a full cache line so that two
// sequences allocated next to each other never share a line.
//
// Each Sequence has exactly one writer (the owning producer or
// consumer) and any number of readers. All accessors go through
// sync/atomic, which gives sequentially consistent ordering: a store of
// the value publishes every write that preceded it on the storing
// goroutine.
type Sequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad
}

// NewSequence instantiates a Sequence with the given initial value,
// normally InitialSequenceValue.
func NewSequence(initial int64) *Sequence {
	s := new(Sequence)
	s.value.Store(initial)
	return s
}

// Get returns the current value of the sequence.
func (s *Sequence) Get() int64 {
	return s.value.Load()
}

// Set updates the sequence, publishing all writes made before the call
// to any goroutine that subsequently observes the new value.
func (s *Sequence) Set(value int64) {
	s.value.Store(value)
}

// SetVolatile updates the sequence with a full store-load fence. Under
// the Go memory model every atomic store already carries that fence, so
// this is identical to Set. The sequencers in this package do not call
// it.
func (s *Sequence) SetVolatile(value int64) {
	s.value.Store(value)
}

// CompareAndSet performs an atomic compare-and-swap of the sequence,
// reporting whether the swap happened.
func (s *Sequence) CompareAndSet(expected, value int64) bool {
	return s.value.CompareAndSwap(expected, value)
}

// AddAndGet atomically adds delta to the sequence and returns the new value.
func (s *Sequence) AddAndGet(delta int64) int64 {
	return s.value.Add(delta)
}

// IncrementAndGet atomically increments the sequence and returns the new value.
func (s *Sequence) IncrementAndGet() int64 {
	return s.value.Add(1)
}

func (s *Sequence) String() string {
	return strconv.FormatInt(s.Get(), 10)
}
