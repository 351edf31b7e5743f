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

package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/extsort/pkg/copier"
	"github.com/walteh/extsort/pkg/scan"
	"github.com/walteh/extsort/pkg/sink"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrSourceNotFound aborts a run whose source is missing or not a directory
	ErrSourceNotFound = scan.ErrSourceNotFound
	// ErrDestination aborts a run whose destination root cannot be used
	ErrDestination = errors.Base("destination unavailable")
	// ErrNameCollision fails a file whose destination was already claimed in the same run
	ErrNameCollision = errors.Base("name collision")
)

// 🔧 Options configures a run
type Options struct {
	Source      string
	Destination string
	PoolSize    int      // copier.DefaultPoolSize when not positive
	Include     []string // doublestar patterns relative to Source
	Exclude     []string

	// Sink receives every failed file; defaults to sink.Log
	Sink sink.FailureSink
	// Observers watch the copy pool
	Observers []copier.Observer
	// RunID tags the run; generated when empty
	RunID string
	// OnStateChange is called on every transition from the coordinating goroutine
	OnStateChange func(State)
}

// 🎮 Engine sorts one source tree into a destination tree
type Engine struct {
	opts Options

	mu    sync.Mutex
	state State
}

// 🏭 New creates an idle engine
func New(opts Options) *Engine {
	if opts.Sink == nil {
		opts.Sink = sink.Log
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = copier.DefaultPoolSize
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Engine{opts: opts}
}

// 🏃 Run is shorthand for New(opts).Run(ctx)
func Run(ctx context.Context, opts Options) (*RunResult, error) {
	return New(opts).Run(ctx)
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RunID returns the id the run is tagged with
func (e *Engine) RunID() string {
	return e.opts.RunID
}

func (e *Engine) setState(ctx context.Context, s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("from", prev.String()).Str("to", s.String()).Msg("state change")
	if e.opts.OnStateChange != nil {
		e.opts.OnStateChange(s)
	}
}

// 🚀 Run validates the source, copies every file it finds into
// Destination/<category>/<name>, and waits for all copies to resolve.
//
// The only errors returned are fatal preconditions (ErrSourceNotFound,
// ErrDestination). Per-file failures are reported in the RunResult and to
// the sink. An engine runs once.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	if e.State() != StateIdle {
		return nil, errors.Errorf("engine already ran (state %s)", e.State())
	}

	logger := zerolog.Ctx(ctx).With().Str("run_id", e.opts.RunID).Logger()
	ctx = logger.WithContext(ctx)

	result := &RunResult{
		ID:       e.opts.RunID,
		PoolSize: e.opts.PoolSize,
		Started:  time.Now(),
	}

	e.setState(ctx, StateValidating)
	scanner, err := e.validate(result)
	if err != nil {
		e.setState(ctx, StateAborted)
		logger.Error().Err(err).Msg("run aborted")
		return nil, err
	}

	logger.Info().
		Str("source", result.Source).
		Str("destination", result.Destination).
		Int("pool_size", result.PoolSize).
		Msg("run started")

	e.setState(ctx, StateDispatching)
	poolOpts := []copier.Option{copier.WithSink(e.opts.Sink)}
	for _, o := range e.opts.Observers {
		poolOpts = append(poolOpts, copier.WithObserver(o))
	}
	pool := copier.NewPool(e.opts.PoolSize, poolOpts...)

	claimed := make(map[string]string)
	for entry := range scanner.Entries(ctx) {
		task := copier.NewTask(entry, result.Destination)
		dst := task.Destination()

		if first, ok := claimed[dst]; ok {
			pool.Reject(ctx, task, errors.Errorf("%w: %s is already taken by %s", ErrNameCollision, dst, first))
			continue
		}
		claimed[dst] = entry.Path

		pool.Submit(ctx, task)
	}
	if ctx.Err() != nil {
		result.Interrupted = true
		logger.Warn().Err(ctx.Err()).Msg("scan interrupted, waiting for dispatched copies")
	}

	e.setState(ctx, StateAwaiting)
	aggregate(result, pool.Wait())
	result.Duration = time.Since(result.Started)

	e.setState(ctx, StateCompleted)
	logger.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("categories", len(result.Categories)).
		Int("warnings", len(result.Warnings)).
		Int64("bytes", result.Bytes).
		Dur("duration", result.Duration).
		Msg("run complete")

	return result, nil
}

// 🔍 validate checks the source, prepares the destination and builds the scanner.
// Nothing is created on disk unless the source is usable.
func (e *Engine) validate(result *RunResult) (*scan.Scanner, error) {
	src, err := filepath.Abs(e.opts.Source)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrSourceNotFound, err.Error())
	}
	dst, err := filepath.Abs(e.opts.Destination)
	if err != nil || e.opts.Destination == "" {
		return nil, errors.Errorf("%w: invalid destination %q", ErrDestination, e.opts.Destination)
	}
	result.Source = src
	result.Destination = dst

	// compared against walked paths, which have symlinks resolved
	realDst, dstErr := scan.ResolvePath(dst)
	var skip []string
	if dstErr == nil {
		// a destination inside the source must not be sorted into itself
		skip = append(skip, realDst)
	}

	scanner, err := scan.New(src, scan.Options{
		Include:  e.opts.Include,
		Exclude:  e.opts.Exclude,
		SkipDirs: skip,
		OnWarning: func(w scan.Warning) {
			result.Warnings = append(result.Warnings, w)
		},
	})
	if err != nil {
		return nil, errors.Errorf("validating source: %w", err)
	}

	if dstErr != nil {
		return nil, errors.Errorf("%w: %s", ErrDestination, dstErr.Error())
	}
	if realDst == scanner.Root() {
		return nil, errors.Errorf("%w: destination is the source directory", ErrDestination)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, errors.Errorf("%w: %s", ErrDestination, err.Error())
	}

	return scanner, nil
}
