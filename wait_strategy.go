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
	"sync"
	"time"

	"github.com/valyala/fastrand"

	errorx "github.com/shui4/disruptor/pkg/errors"
)

// WaitStrategy decides how a consumer suspends while it waits for a
// sequence to become available. The variants differ only in their
// suspension policy, never in what they return.
type WaitStrategy interface {
	// WaitFor blocks until min(cursor, dependents) >= sequence and
	// returns that minimum, which may exceed the requested sequence.
	// It returns errorx.ErrAlert when the barrier is alerted while
	// waiting and errorx.ErrTimeout when a configured deadline elapses.
	WaitFor(sequence int64, cursor *Sequence, dependents Gate, barrier SequenceBarrier) (int64, error)

	// SignalAllWhenBlocking wakes any consumers parked inside WaitFor.
	// Sequencers call it after every publish; it is a no-op for the
	// non-blocking variants.
	SignalAllWhenBlocking()
}

// BusySpinWaitStrategy spins hot on the dependent sequences. It has the
// lowest latency and the highest CPU cost; it should only be used when
// consumer threads can be bound to dedicated cores.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy instantiates a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy {
	return new(BusySpinWaitStrategy)
}

// WaitFor implements WaitStrategy.
func (*BusySpinWaitStrategy) WaitFor(sequence int64, _ *Sequence, dependents Gate, barrier SequenceBarrier) (int64, error) {
	var availableSequence int64
	for availableSequence = dependents.Get(); availableSequence < sequence; availableSequence = dependents.Get() {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
	}
	return availableSequence, nil
}

// SignalAllWhenBlocking implements WaitStrategy.
func (*BusySpinWaitStrategy) SignalAllWhenBlocking() {}

const yieldingSpinTries = 100

// YieldingWaitStrategy spins for a fixed number of tries, then yields
// the processor on every iteration. A good compromise when consumers
// may share cores with other goroutines.
type YieldingWaitStrategy struct{}

// NewYieldingWaitStrategy instantiates a YieldingWaitStrategy.
func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return new(YieldingWaitStrategy)
}

// WaitFor implements WaitStrategy.
func (*YieldingWaitStrategy) WaitFor(sequence int64, _ *Sequence, dependents Gate, barrier SequenceBarrier) (int64, error) {
	counter := yieldingSpinTries
	var availableSequence int64
	for availableSequence = dependents.Get(); availableSequence < sequence; availableSequence = dependents.Get() {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		if counter > 0 {
			counter--
		} else {
			runtime.Gosched()
		}
	}
	return availableSequence, nil
}

// SignalAllWhenBlocking implements WaitStrategy.
func (*YieldingWaitStrategy) SignalAllWhenBlocking() {}

const (
	defaultSleepRetries = 200
	defaultSleepTime    = 100 * time.Nanosecond
)

// SleepingWaitStrategy spins, then yields, then parks for a short
// interval between rechecks. It keeps idle consumers off the CPU at the
// price of latency spikes after quiet periods, and it never requires
// the producer to signal anything.
type SleepingWaitStrategy struct {
	retries   int
	sleepTime time.Duration
}

// NewSleepingWaitStrategy instantiates a SleepingWaitStrategy with the
// default retry count and park interval.
func NewSleepingWaitStrategy() *SleepingWaitStrategy {
	return &SleepingWaitStrategy{retries: defaultSleepRetries, sleepTime: defaultSleepTime}
}

// NewSleepingWaitStrategyWith instantiates a SleepingWaitStrategy with
// custom spin retries and park interval.
func NewSleepingWaitStrategyWith(retries int, sleepTime time.Duration) *SleepingWaitStrategy {
	return &SleepingWaitStrategy{retries: retries, sleepTime: sleepTime}
}

// WaitFor implements WaitStrategy.
func (ws *SleepingWaitStrategy) WaitFor(sequence int64, _ *Sequence, dependents Gate, barrier SequenceBarrier) (int64, error) {
	counter := ws.retries
	var availableSequence int64
	for availableSequence = dependents.Get(); availableSequence < sequence; availableSequence = dependents.Get() {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		switch {
		case counter > 100:
			counter--
		case counter > 0:
			counter--
			runtime.Gosched()
		default:
			time.Sleep(ws.jitteredSleepTime())
		}
	}
	return availableSequence, nil
}

// jitteredSleepTime spreads parked consumers over a small window so
// they do not wake in lockstep and stampede the same cache lines.
func (ws *SleepingWaitStrategy) jitteredSleepTime() time.Duration {
	span := uint32(ws.sleepTime / 2)
	if span == 0 {
		return ws.sleepTime
	}
	return ws.sleepTime + time.Duration(fastrand.Uint32n(span))
}

// SignalAllWhenBlocking implements WaitStrategy.
func (*SleepingWaitStrategy) SignalAllWhenBlocking() {}

// BlockingWaitStrategy parks consumers on a condition variable and
// relies on the producer broadcasting after every publish. It is the
// slowest variant but consumes no CPU while idle, which makes it the
// right default when throughput and latency are not critical.
type BlockingWaitStrategy struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlockingWaitStrategy instantiates a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	ws := new(BlockingWaitStrategy)
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// WaitFor implements WaitStrategy.
func (ws *BlockingWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependents Gate, barrier SequenceBarrier) (int64, error) {
	if cursor.Get() < sequence {
		ws.mu.Lock()
		for cursor.Get() < sequence {
			if err := barrier.CheckAlert(); err != nil {
				ws.mu.Unlock()
				return 0, err
			}
			ws.cond.Wait()
		}
		ws.mu.Unlock()
	}

	var availableSequence int64
	for availableSequence = dependents.Get(); availableSequence < sequence; availableSequence = dependents.Get() {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		runtime.Gosched()
	}
	return availableSequence, nil
}

// SignalAllWhenBlocking implements WaitStrategy.
func (ws *BlockingWaitStrategy) SignalAllWhenBlocking() {
	ws.mu.Lock()
	ws.cond.Broadcast()
	ws.mu.Unlock()
}

// TimeoutBlockingWaitStrategy behaves like BlockingWaitStrategy but
// gives up with errorx.ErrTimeout once the configured timeout elapses.
// The event processor treats that as a notification, not a failure.
type TimeoutBlockingWaitStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	timeout time.Duration
}

// NewTimeoutBlockingWaitStrategy instantiates a
// TimeoutBlockingWaitStrategy with the given per-wait timeout.
func NewTimeoutBlockingWaitStrategy(timeout time.Duration) *TimeoutBlockingWaitStrategy {
	ws := &TimeoutBlockingWaitStrategy{timeout: timeout}
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// WaitFor implements WaitStrategy.
func (ws *TimeoutBlockingWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependents Gate, barrier SequenceBarrier) (int64, error) {
	deadline := time.Now().Add(ws.timeout)

	if cursor.Get() < sequence {
		ws.mu.Lock()
		for cursor.Get() < sequence {
			if err := barrier.CheckAlert(); err != nil {
				ws.mu.Unlock()
				return 0, err
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				ws.mu.Unlock()
				return 0, errorx.ErrTimeout
			}
			// sync.Cond has no timed wait; arm a timer that broadcasts
			// so the loop re-evaluates the deadline. The callback takes
			// the mutex first so it cannot fire between the deadline
			// check and the wait parking.
			timer := time.AfterFunc(remaining, func() {
				ws.mu.Lock()
				ws.mu.Unlock() //nolint:staticcheck // empty critical section orders the broadcast after Wait parks
				ws.cond.Broadcast()
			})
			ws.cond.Wait()
			timer.Stop()
		}
		ws.mu.Unlock()
	}

	var availableSequence int64
	for availableSequence = dependents.Get(); availableSequence < sequence; availableSequence = dependents.Get() {
		if err := barrier.CheckAlert(); err != nil {
			return 0, err
		}
		runtime.Gosched()
	}
	return availableSequence, nil
}

// SignalAllWhenBlocking implements WaitStrategy.
func (ws *TimeoutBlockingWaitStrategy) SignalAllWhenBlocking() {
	ws.mu.Lock()
	ws.cond.Broadcast()
	ws.mu.Unlock()
}
