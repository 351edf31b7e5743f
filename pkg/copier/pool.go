// Copyright 2025 walteh LLC
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

package copier

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/extsort/pkg/sink"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize is used when a pool is created with a non-positive size
const DefaultPoolSize = 10

// 👀 Observer is notified around the blocking part of every task.
// Calls come from worker goroutines and must be safe for concurrent use.
type Observer interface {
	TaskStarted(task Task)
	TaskFinished(outcome Outcome)
}

// 🔧 Option configures a Pool
type Option func(*Pool)

// WithSink forwards every failed outcome to s
func WithSink(s sink.FailureSink) Option {
	return func(p *Pool) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithObserver adds an observer
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// 🏊 Pool runs copy tasks on at most Size goroutines at a time.
//
// A pool serves a single run: Submit any number of tasks, then Wait once.
// Every submitted task yields exactly one Outcome, and a failing task never
// stops the others.
type Pool struct {
	size      int
	group     errgroup.Group
	sink      sink.FailureSink
	observers []Observer
	dirs      dirCache

	mu       sync.Mutex
	outcomes []Outcome
}

// 🏭 NewPool creates a pool with size workers
func NewPool(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &Pool{
		size: size,
		sink: sink.Discard,
	}
	p.group.SetLimit(size)

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Size returns the concurrency bound
func (p *Pool) Size() int {
	return p.size
}

// 📥 Submit schedules task. It returns as soon as a worker slot is free,
// so callers only block while the pool is saturated.
//
// ctx supplies the logger and is passed to the sink. Cancelling it does not
// abort tasks that were already submitted.
func (p *Pool) Submit(ctx context.Context, task Task) {
	ctx = context.WithoutCancel(ctx)
	p.group.Go(func() error {
		p.resolve(ctx, p.run(ctx, task))
		// outcomes carry errors; the group never sees one
		return nil
	})
}

// 🚫 Reject resolves task as failed with err without running it
func (p *Pool) Reject(ctx context.Context, task Task, err error) {
	p.resolve(ctx, Outcome{Task: task, Status: StatusFailure, Err: err})
}

// ⏳ Wait blocks until every submitted task has resolved and returns all outcomes
func (p *Pool) Wait() []Outcome {
	_ = p.group.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Outcome, len(p.outcomes))
	copy(out, p.outcomes)
	return out
}

func (p *Pool) run(ctx context.Context, task Task) (outcome Outcome) {
	outcome = Outcome{Task: task}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusFailure
			outcome.Err = errors.Errorf("copy panicked: %v", r)
		}
		outcome.Duration = time.Since(start)
		for _, o := range p.observers {
			o.TaskFinished(outcome)
		}
	}()

	for _, o := range p.observers {
		o.TaskStarted(task)
	}

	if err := p.dirs.ensure(task.Dir()); err != nil {
		outcome.Status = StatusFailure
		outcome.Err = err
		return outcome
	}

	action, n, err := copyFile(task)
	outcome.Bytes = n
	if err != nil {
		outcome.Status = StatusFailure
		outcome.Err = err
		return outcome
	}

	outcome.Status = StatusSuccess
	outcome.Action = action
	return outcome
}

func (p *Pool) resolve(ctx context.Context, outcome Outcome) {
	logger := zerolog.Ctx(ctx)
	outcome.Finished = time.Now()

	if outcome.OK() {
		logger.Debug().
			Str("source", outcome.Task.Source.Path).
			Str("destination", outcome.Task.Destination()).
			Str("action", string(outcome.Action)).
			Int64("bytes", outcome.Bytes).
			Dur("duration", outcome.Duration).
			Msg("file copied")
	} else {
		if outcome.Err == nil {
			outcome.Err = errors.Errorf("task finished with status %s", outcome.Status)
		}
		outcome.Status = StatusFailure
		p.sink.Record(ctx, outcome.Failure())
	}

	p.mu.Lock()
	p.outcomes = append(p.outcomes, outcome)
	p.mu.Unlock()
}
