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

	"github.com/shui4/disruptor/pkg/logging"
)

// ExceptionHandler isolates the processing loop from handler faults:
// every error returned (or panic raised) by user handler code is routed
// here instead of killing the consumer goroutine and stalling the
// pipeline.
type ExceptionHandler[E any] interface {
	// HandleEventError is called with the error, the sequence it
	// occurred on and the event being processed (nil for batch-start
	// and timeout faults). After an event or batch-start fault the
	// processor skips the sequence; after a timeout fault it does not.
	HandleEventError(err error, sequence int64, event *E)

	// HandleOnStartError is called when the handler's OnStart faults.
	HandleOnStartError(err error)

	// HandleOnShutdownError is called when the handler's OnShutdown faults.
	HandleOnShutdownError(err error)
}

// LoggingExceptionHandler logs faults through pkg/logging and keeps the
// processor going. It is the process-wide default.
type LoggingExceptionHandler[E any] struct{}

// NewLoggingExceptionHandler instantiates a LoggingExceptionHandler.
func NewLoggingExceptionHandler[E any]() *LoggingExceptionHandler[E] {
	return new(LoggingExceptionHandler[E])
}

// HandleEventError implements ExceptionHandler.
func (*LoggingExceptionHandler[E]) HandleEventError(err error, sequence int64, _ *E) {
	logging.Errorf("error processing event at sequence %d, %v", sequence, err)
}

// HandleOnStartError implements ExceptionHandler.
func (*LoggingExceptionHandler[E]) HandleOnStartError(err error) {
	logging.Errorf("error during handler start, %v", err)
}

// HandleOnShutdownError implements ExceptionHandler.
func (*LoggingExceptionHandler[E]) HandleOnShutdownError(err error) {
	logging.Errorf("error during handler shutdown, %v", err)
}

// FatalExceptionHandler logs the fault and panics, killing the consumer
// goroutine. Opt in when a handler fault means the pipeline must not
// continue.
type FatalExceptionHandler[E any] struct{}

// NewFatalExceptionHandler instantiates a FatalExceptionHandler.
func NewFatalExceptionHandler[E any]() *FatalExceptionHandler[E] {
	return new(FatalExceptionHandler[E])
}

// HandleEventError implements ExceptionHandler.
func (*FatalExceptionHandler[E]) HandleEventError(err error, sequence int64, _ *E) {
	logging.Errorf("fatal error processing event at sequence %d, %v", sequence, err)
	panic(err)
}

// HandleOnStartError implements ExceptionHandler.
func (*FatalExceptionHandler[E]) HandleOnStartError(err error) {
	logging.Errorf("fatal error during handler start, %v", err)
	panic(err)
}

// HandleOnShutdownError implements ExceptionHandler.
func (*FatalExceptionHandler[E]) HandleOnShutdownError(err error) {
	logging.Errorf("fatal error during handler shutdown, %v", err)
	panic(err)
}

// ExceptionHandlerWrapper delegates to a switchable handler, falling
// back to the logging default until SwitchTo is called. The wiring
// facade installs one wrapper on every processor so a late
// SetDefaultExceptionHandler call reaches consumers that are already
// running.
type ExceptionHandlerWrapper[E any] struct {
	delegate atomic.Pointer[exceptionHandlerBox[E]]
}

type exceptionHandlerBox[E any] struct {
	handler ExceptionHandler[E]
}

// NewExceptionHandlerWrapper instantiates an ExceptionHandlerWrapper.
func NewExceptionHandlerWrapper[E any]() *ExceptionHandlerWrapper[E] {
	return new(ExceptionHandlerWrapper[E])
}

// SwitchTo replaces the delegate for all subsequent faults.
func (w *ExceptionHandlerWrapper[E]) SwitchTo(handler ExceptionHandler[E]) {
	w.delegate.Store(&exceptionHandlerBox[E]{handler: handler})
}

func (w *ExceptionHandlerWrapper[E]) current() ExceptionHandler[E] {
	if box := w.delegate.Load(); box != nil {
		return box.handler
	}
	return NewLoggingExceptionHandler[E]()
}

// HandleEventError implements ExceptionHandler.
func (w *ExceptionHandlerWrapper[E]) HandleEventError(err error, sequence int64, event *E) {
	w.current().HandleEventError(err, sequence, event)
}

// HandleOnStartError implements ExceptionHandler.
func (w *ExceptionHandlerWrapper[E]) HandleOnStartError(err error) {
	w.current().HandleOnStartError(err)
}

// HandleOnShutdownError implements ExceptionHandler.
func (w *ExceptionHandlerWrapper[E]) HandleOnShutdownError(err error) {
	w.current().HandleOnShutdownError(err)
}
