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

package sink

import (
	"context"
	"sync"
	"time"
)

// 📝 Failure is one failed copy, as handed to a FailureSink
type Failure struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Error       string    `json:"error"`
	Time        time.Time `json:"time"`
}

// 🗂️ FailureSink records per-file failures without interrupting a run.
//
// Record is called concurrently from copy workers. Implementations must not
// block for long and must swallow their own errors.
type FailureSink interface {
	Record(ctx context.Context, f Failure)
}

// Discard drops every failure
var Discard FailureSink = discard{}

type discard struct{}

func (discard) Record(context.Context, Failure) {}

// 🧠 Memory keeps failures in memory
type Memory struct {
	mu       sync.Mutex
	failures []Failure
}

// NewMemory returns an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, f Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, f)
}

// Failures returns a copy of everything recorded so far
func (m *Memory) Failures() []Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Failure, len(m.failures))
	copy(out, m.failures)
	return out
}

// 🔀 Multi fans every failure out to all sinks in order
func Multi(sinks ...FailureSink) FailureSink {
	filtered := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

type multi []FailureSink

func (m multi) Record(ctx context.Context, f Failure) {
	for _, s := range m {
		s.Record(ctx, f)
	}
}
