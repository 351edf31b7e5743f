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
	"sort"
	"time"

	"github.com/walteh/extsort/pkg/classify"
	"github.com/walteh/extsort/pkg/copier"
	"github.com/walteh/extsort/pkg/scan"
	"github.com/walteh/extsort/pkg/sink"
)

// 🔄 State is where a run is in its lifecycle
type State int

const (
	StateIdle State = iota
	StateValidating
	StateDispatching // scanning and handing tasks to the pool
	StateAwaiting    // scan done, waiting on in-flight copies
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateDispatching:
		return "dispatching"
	case StateAwaiting:
		return "awaiting"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// 📊 RunResult summarizes one completed run
type RunResult struct {
	ID          string
	Source      string
	Destination string
	PoolSize    int
	Started     time.Time
	Duration    time.Duration

	Succeeded  int
	Failed     int
	Bytes      int64
	Categories map[classify.Category]int // successful copies per category
	Failures   []sink.Failure            // sorted by source path
	Warnings   []scan.Warning
	Outcomes   []copier.Outcome // completion order

	// Interrupted is set when ctx ended before the scan finished.
	// Every task dispatched before that point still resolved.
	Interrupted bool
}

// OK reports whether every discovered file was copied
func (r *RunResult) OK() bool {
	return r.Failed == 0 && !r.Interrupted
}

// Total is the number of tasks that resolved
func (r *RunResult) Total() int {
	return r.Succeeded + r.Failed
}

func aggregate(r *RunResult, outcomes []copier.Outcome) {
	r.Outcomes = outcomes
	r.Categories = make(map[classify.Category]int)

	for _, o := range outcomes {
		if o.OK() {
			r.Succeeded++
			r.Bytes += o.Bytes
			r.Categories[o.Task.Category]++
			continue
		}
		r.Failed++
		r.Failures = append(r.Failures, o.Failure())
	}

	sort.SliceStable(r.Failures, func(i, j int) bool {
		return r.Failures[i].Source < r.Failures[j].Source
	})
}
