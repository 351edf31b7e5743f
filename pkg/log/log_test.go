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

package log

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/extsort/pkg/classify"
	"github.com/walteh/extsort/pkg/copier"
	"github.com/walteh/extsort/pkg/scan"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_file_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.LogFileOperation(context.Background(), FileOperation{
					Path:     "docs/a.txt",
					Category: "txt",
					Status:   "created",
				})
			},
			wantLogs: []string{
				"✓ docs/a.txt                          txt             created",
			},
		},
		{
			name: "log_run_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.StartRunOperation(context.Background(), RunOperation{
					ID:          "run-1",
					Source:      "/tmp/src",
					Destination: "/tmp/dst",
					PoolSize:    10,
				})
				logger.EndRunOperation(context.Background())
			},
			wantLogs: []string{
				"[sorting into /tmp/dst]",
				"◆ /tmp/src • 10 workers",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("sorting files by extension")
			},
			wantLogs: []string{
				"extsort • sorting files by extension",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
		{
			name: "quiet_hides_files",
			op: func(t *testing.T, logger *Logger) {
				logger.Quiet(true)
				logger.LogFileOperation(context.Background(), FileOperation{Path: "a.txt", Category: "txt", Status: "created"})
				logger.Info("done")
			},
			wantLogs: []string{
				"ℹ️  done",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create buffer for console output
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Nop())

			// Perform operation
			tt.op(t, logger)

			// Check output
			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	// Create logger
	logger := New(io.Discard, zerolog.Nop())

	// Add to context
	ctx := context.Background()
	ctx = NewContext(ctx, logger)

	// Get from context
	got := FromContext(ctx)
	assert.Same(t, logger, got, "logger from context should be the same instance")

	// Check panic on missing logger
	assert.Panics(t, func() {
		FromContext(context.Background())
	}, "FromContext should panic when logger is missing")
}

func TestFileOperationFormatting(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name string
		op   FileOperation
		want string
	}{
		{
			name: "created_file",
			op: FileOperation{
				Path:     "docs/a.txt",
				Category: "txt",
				Status:   "created",
			},
			want: "    ✓ docs/a.txt                          txt             created   ",
		},
		{
			name: "replaced_file",
			op: FileOperation{
				Path:     "b.TXT",
				Category: "txt",
				Status:   "replaced",
			},
			want: "    ⟳ b.TXT                               txt             replaced  ",
		},
		{
			name: "failed_file",
			op: FileOperation{
				Path:     "c",
				Category: "no_extension",
				Status:   "failed",
				Error:    "permission denied",
			},
			want: "    ✗ c                                   no_extension    failed     permission denied",
		},
		{
			name: "long_error_is_cut",
			op: FileOperation{
				Path:     "c",
				Category: "no_extension",
				Status:   "failed",
				Error:    strings.Repeat("x", 100),
			},
			want: "    ✗ c                                   no_extension    failed     " + strings.Repeat("x", 80) + "…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(io.Discard, zerolog.Nop())
			assert.Equal(t, tt.want, logger.formatFileOperation(tt.op), "formatted output should match")
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		limit int
		want  string
	}{
		{name: "short", msg: "disk full", limit: 80, want: "disk full"},
		{name: "exact", msg: "abcd", limit: 4, want: "abcd"},
		{name: "ascii", msg: "abcdef", limit: 4, want: "abcd…"},
		// é is two bytes starting at offset 3
		{name: "mid_rune", msg: "abcéf", limit: 4, want: "abc…"},
		{name: "rune_boundary", msg: "abcéf", limit: 5, want: "abcé…"},
		{name: "cjk", msg: "日本語のファイル", limit: 7, want: "日本…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.msg, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got), "result should be valid utf-8")
		})
	}
}

func TestLoggerObserver(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	buf := &bytes.Buffer{}
	logger := New(buf, zerolog.Nop())

	task := copier.Task{
		Source:          scan.Entry{Name: "a.txt", RelPath: "docs/a.txt"},
		DestinationRoot: "/tmp/dst",
		Category:        classify.Category("txt"),
	}

	logger.TaskStarted(task)
	assert.Empty(t, buf.String(), "starting a task should print nothing")

	logger.TaskFinished(copier.Outcome{Task: task, Status: copier.StatusSuccess, Action: copier.ActionCreated})
	logger.TaskFinished(copier.Outcome{Task: task, Status: copier.StatusSuccess, Action: copier.ActionReplaced})
	logger.TaskFinished(copier.Outcome{Task: task, Status: copier.StatusFailure, Err: errors.New("disk full")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "✓ docs/a.txt")
	assert.Contains(t, lines[1], "⟳ docs/a.txt")
	assert.Contains(t, lines[2], "✗ docs/a.txt")
	assert.Contains(t, lines[2], "disk full")

	assert.Equal(t, 1, logger.Count("created"))
	assert.Equal(t, 1, logger.Count("replaced"))
	assert.Equal(t, 1, logger.Count("failed"))
}

func TestLoggerMirrorsToZerolog(t *testing.T) {
	zbuf := &bytes.Buffer{}
	logger := New(io.Discard, zerolog.New(zbuf).Level(zerolog.DebugLevel))

	logger.LogFileOperation(context.Background(), FileOperation{Path: "c", Category: "no_extension", Status: "failed", Error: "boom"})
	logger.Warning("careful")

	out := zbuf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"file":"c"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"message":"careful"`)
}
