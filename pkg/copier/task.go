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
	"path/filepath"
	"time"

	"github.com/walteh/extsort/pkg/classify"
	"github.com/walteh/extsort/pkg/scan"
	"github.com/walteh/extsort/pkg/sink"
)

// 📊 Status is the terminal state of a task
type Status int

const (
	StatusUnknown Status = iota
	StatusSuccess        // File landed at its destination
	StatusFailure        // Something went wrong, see Outcome.Err
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// 🔄 Action describes what a successful copy did to the destination
type Action string

const (
	ActionNone     Action = ""
	ActionCreated  Action = "created"  // Destination did not exist
	ActionReplaced Action = "replaced" // Destination was overwritten
)

// 📦 Task binds one source file to its destination category
type Task struct {
	Source          scan.Entry
	DestinationRoot string
	Category        classify.Category
}

// 🏭 NewTask classifies entry and targets it at destinationRoot
func NewTask(entry scan.Entry, destinationRoot string) Task {
	return Task{
		Source:          entry,
		DestinationRoot: destinationRoot,
		Category:        classify.Classify(entry.Name),
	}
}

// Dir is the category directory the file is copied into
func (t Task) Dir() string {
	return filepath.Join(t.DestinationRoot, string(t.Category))
}

// Destination is the full target path
func (t Task) Destination() string {
	return filepath.Join(t.Dir(), t.Source.Name)
}

// 📋 Outcome is the result of exactly one task
type Outcome struct {
	Task     Task
	Status   Status
	Action   Action
	Bytes    int64
	Duration time.Duration
	Finished time.Time
	Err      error
}

// OK reports whether the task succeeded
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Failure converts a failed outcome into a sink record
func (o Outcome) Failure() sink.Failure {
	f := sink.Failure{
		Source:      o.Task.Source.Path,
		Destination: o.Task.Destination(),
		Time:        o.Finished,
	}
	if o.Err != nil {
		f.Error = o.Err.Error()
	}
	return f
}
