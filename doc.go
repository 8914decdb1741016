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

/*
Package disruptor is a high-throughput, low-latency inter-goroutine
messaging substrate built around a preallocated ring buffer with
explicit sequence coordination.

Producers claim sequences from a Sequencer, write into the ring slot
those sequences map to, and publish. Consumers are driven by a
BatchEventProcessor that blocks on a SequenceBarrier until new
sequences are available, drains everything available in one batch, and
then advances its own Sequence, which gates the producer against
wrapping the ring over unconsumed slots. There are no locks on
contended paths and no allocation on the hot path; backpressure is
bounded by the ring size.

The smallest useful setup is a ring buffer, one processor and a
goroutine to drive it:

	rb, _ := disruptor.NewSingleProducerRingBuffer(func() ValueEvent { return ValueEvent{} },
		1024, disruptor.NewBlockingWaitStrategy())
	processor := disruptor.NewBatchEventProcessor[ValueEvent](rb, rb.NewBarrier(), handler)
	rb.AddGatingSequences(processor.Sequence())
	go processor.Run()

	seq, _ := rb.Next(1)
	rb.Get(seq).Value = 42
	rb.Publish(seq)

The Disruptor facade wires the same pieces from handler declarations
and runs the processors on a goroutine pool:

	d, _ := disruptor.NewDisruptor[ValueEvent](newValueEvent, 1024,
		disruptor.WithProducerType(disruptor.MultiProducer))
	group, _ := d.HandleEventsWith(journaller, replicator)
	group.Then(applier)
	d.Start()
*/
package disruptor
