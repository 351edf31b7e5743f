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
	"context"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/extsort/pkg/copier"
)

// 🎨 Display configuration
const (
	fileIndent     = 4  // spaces to indent file entries
	nameWidth      = 35 // Base width for filename
	categoryWidth  = 15 // Width for category
	statusWidth    = 10 // Width for status text
	maxErrorLength = 80 // Error text is cut after this many bytes
)

// 🎯 FileOperation is one resolved copy, ready for display
type FileOperation struct {
	Path     string // Source path relative to the run's source root
	Category string // Destination category
	Status   string // created, replaced or failed
	Error    string // Failure description
}

// 📦 RunOperation describes the run being logged
type RunOperation struct {
	ID          string
	Source      string
	Destination string
	PoolSize    int
}

// 🎯 Logger prints per-file progress to a console and mirrors it to zerolog.
// It implements copier.Observer so a pool can drive it directly.
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentRun *RunOperation
	counts     map[string]int
	quiet      bool
}

var _ copier.Observer = (*Logger)(nil)

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		counts:  map[string]int{},
	}
}

// Quiet suppresses per-file lines; run headers and messages still print
func (l *Logger) Quiet(quiet bool) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quiet = quiet
	return l
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Status {
	case string(copier.ActionCreated):
		symbol = '✓'
		symbolColor = color.FgGreen
	case string(copier.ActionReplaced):
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '✗'
		symbolColor = color.FgRed
	}

	line := fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(color.FgCyan).Sprint(fmt.Sprintf("%-*s", categoryWidth, op.Category)),
		fmt.Sprintf("%-*s", statusWidth, op.Status))

	if op.Error != "" {
		line += " " + color.New(color.Faint).Sprint(truncate(op.Error, maxErrorLength))
	}
	return line
}

// truncate cuts msg to at most limit bytes without splitting a rune
func truncate(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "…"
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[op.Status]++

	if !l.quiet {
		fmt.Fprintln(l.console, l.formatFileOperation(op))
	}

	ev := l.zlog.Debug()
	if op.Error != "" {
		ev = l.zlog.Warn().Str("error", op.Error)
	}
	ev.Str("file", op.Path).
		Str("category", op.Category).
		Str("status", op.Status).
		Msg("file operation")
}

// TaskStarted is a no-op; lines print when a task resolves
func (l *Logger) TaskStarted(copier.Task) {}

// TaskFinished prints the outcome of one copy
func (l *Logger) TaskFinished(outcome copier.Outcome) {
	op := FileOperation{
		Path:     outcome.Task.Source.RelPath,
		Category: string(outcome.Task.Category),
		Status:   string(outcome.Action),
	}
	if op.Path == "" {
		op.Path = outcome.Task.Source.Name
	}
	if !outcome.OK() {
		op.Status = "failed"
		if outcome.Err != nil {
			op.Error = outcome.Err.Error()
		}
	}
	l.LogFileOperation(context.Background(), op)
}

// 📝 StartRunOperation starts a new run
func (l *Logger) StartRunOperation(ctx context.Context, op RunOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentRun = &op
	l.counts = map[string]int{}

	fmt.Fprintf(l.console, "[sorting into %s]\n",
		color.New(color.FgCyan).Sprint(op.Destination))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Source),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d workers", op.PoolSize))

	l.zlog.Info().
		Str("run_id", op.ID).
		Str("source", op.Source).
		Str("destination", op.Destination).
		Int("pool_size", op.PoolSize).
		Msg("starting run")
}

// 📝 EndRunOperation ends the current run
func (l *Logger) EndRunOperation(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentRun == nil {
		return
	}

	l.zlog.Info().
		Str("run_id", l.currentRun.ID).
		Int("created", l.counts[string(copier.ActionCreated)]).
		Int("replaced", l.counts[string(copier.ActionReplaced)]).
		Int("failed", l.counts["failed"]).
		Msg("run operation complete")

	l.currentRun = nil
}

// Count returns how many file operations were logged with status
func (l *Logger) Count(status string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[status]
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("extsort")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...any) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...any) {
	l.Success(fmt.Sprintf(format, args...))
}
