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

import "github.com/shui4/disruptor/pkg/pool/goroutine"

// ProducerType selects the claim strategy of the ring buffer built by
// the wiring facade.
type ProducerType int

const (
	// SingleProducer claims without CAS; only one goroutine may publish.
	SingleProducer ProducerType = iota
	// MultiProducer claims by CAS and tracks per-slot availability;
	// any number of goroutines may publish.
	MultiProducer
)

// Option is a function that will set up option.
type Option func(opts *Options)

func initOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.WaitStrategy == nil {
		opts.WaitStrategy = NewBlockingWaitStrategy()
	}
	if opts.Pool == nil {
		opts.Pool = goroutine.Default()
	}
	return opts
}

// Options are set when building a Disruptor.
type Options struct {
	// ProducerType selects single- or multi-producer sequencing,
	// defaulting to SingleProducer.
	ProducerType ProducerType

	// WaitStrategy is the suspension policy consumers block with,
	// defaulting to the blocking variant.
	WaitStrategy WaitStrategy

	// Pool is the worker pool that event processors run on, defaulting
	// to goroutine.Default(). Each processor occupies one worker for
	// its whole lifetime.
	Pool *goroutine.Pool
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithProducerType sets up the producer type.
func WithProducerType(producerType ProducerType) Option {
	return func(opts *Options) {
		opts.ProducerType = producerType
	}
}

// WithWaitStrategy sets up the wait strategy.
func WithWaitStrategy(waitStrategy WaitStrategy) Option {
	return func(opts *Options) {
		opts.WaitStrategy = waitStrategy
	}
}

// WithGoroutinePool sets up the worker pool that runs the processors.
func WithGoroutinePool(pool *goroutine.Pool) Option {
	return func(opts *Options) {
		opts.Pool = pool
	}
}
