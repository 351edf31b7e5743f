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

// Package scan walks a source tree and yields the regular files beneath it.
package scan

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrSourceNotFound is returned when the scan root is missing or is not a directory.
var ErrSourceNotFound = errors.Base("source not found")

// 📄 Entry is a regular file discovered under the scan root
type Entry struct {
	Path    string      // Absolute path to the file
	RelPath string      // Slash-separated path relative to the root
	Name    string      // Base name
	Size    int64       // Size in bytes at scan time
	Mode    fs.FileMode // Permission bits at scan time
	ModTime time.Time   // Modification time at scan time
}

// ⚠️ Warning is a non-fatal problem found while walking
type Warning struct {
	Path string
	Err  error
}

func (w Warning) Error() string {
	return w.Path + ": " + w.Err.Error()
}

func (w Warning) Unwrap() error {
	return w.Err
}

// 🔧 Options configures a Scanner
type Options struct {
	// Include limits the scan to files matching at least one pattern
	Include []string
	// Exclude drops matching files and prunes matching directories
	Exclude []string
	// SkipDirs are absolute directories that are never descended into
	SkipDirs []string
	// OnWarning is called for every skipped subtree or unreadable entry
	OnWarning func(Warning)
}

// 🔍 Scanner lists regular files beneath a root directory
type Scanner struct {
	root string
	opts Options
}

// 🏭 New validates root and returns a scanner for it.
// A root reached through a symlink is resolved so the walk descends into it.
func New(root string, opts Options) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("resolving %s: %w", root, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("%w: %s", ErrSourceNotFound, abs)
		}
		return nil, errors.Errorf("%w: %s: %s", ErrSourceNotFound, abs, err.Error())
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, errors.Errorf("%w: %s: %s", ErrSourceNotFound, abs, err.Error())
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%w: %s is not a directory", ErrSourceNotFound, abs)
	}

	dir, err := os.Open(resolved)
	if err != nil {
		return nil, errors.Errorf("%w: %s is not readable: %s", ErrSourceNotFound, abs, err.Error())
	}
	_, err = dir.ReadDir(1)
	_ = dir.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("%w: %s is not readable: %s", ErrSourceNotFound, abs, err.Error())
	}

	for _, pattern := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid pattern %q", pattern)
		}
	}

	skip := make([]string, 0, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		r, err := ResolvePath(d)
		if err != nil {
			return nil, errors.Errorf("resolving %s: %w", d, err)
		}
		skip = append(skip, r)
	}
	opts.SkipDirs = skip

	return &Scanner{root: resolved, opts: opts}, nil
}

// 🔗 ResolvePath returns the absolute path with every symlink resolved.
// Trailing components that do not exist yet are kept as given.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}
	base, err := ResolvePath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, filepath.Base(abs)), nil
}

// Root returns the absolute scan root with symlinks resolved
func (s *Scanner) Root() string {
	return s.root
}

// 🚶 Entries lazily yields every regular file under the root in directory order.
// Iteration ends early when ctx is done or the consumer stops.
func (s *Scanner) Entries(ctx context.Context) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		logger := zerolog.Ctx(ctx)

		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if err != nil {
				if path == s.root {
					return err
				}
				s.warn(ctx, Warning{Path: path, Err: err})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				s.warn(ctx, Warning{Path: path, Err: err})
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if path != s.root && slices.Contains(s.opts.SkipDirs, path) {
					logger.Debug().Str("dir", rel).Msg("skipping directory")
					return filepath.SkipDir
				}
				if path != s.root && s.excluded(rel) {
					logger.Debug().Str("dir", rel).Msg("pruning excluded directory")
					return filepath.SkipDir
				}
				return nil
			}

			// symlinks, sockets, devices and pipes are not sorted
			if !d.Type().IsRegular() {
				logger.Debug().Str("path", rel).Str("type", d.Type().String()).Msg("skipping non-regular file")
				return nil
			}

			if !s.included(rel) || s.excluded(rel) {
				logger.Debug().Str("path", rel).Msg("file filtered out")
				return nil
			}

			info, err := d.Info()
			if err != nil {
				s.warn(ctx, Warning{Path: path, Err: err})
				return nil
			}

			entry := Entry{
				Path:    path,
				RelPath: rel,
				Name:    d.Name(),
				Size:    info.Size(),
				Mode:    info.Mode().Perm(),
				ModTime: info.ModTime(),
			}
			if !yield(entry) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.warn(ctx, Warning{Path: s.root, Err: err})
		}
	}
}

func (s *Scanner) warn(ctx context.Context, w Warning) {
	zerolog.Ctx(ctx).Warn().Str("path", w.Path).Err(w.Err).Msg("skipping unreadable entry")
	if s.opts.OnWarning != nil {
		s.opts.OnWarning(w)
	}
}

func (s *Scanner) included(rel string) bool {
	if len(s.opts.Include) == 0 {
		return true
	}
	return matchAny(s.opts.Include, rel)
}

func (s *Scanner) excluded(rel string) bool {
	return matchAny(s.opts.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		// patterns were validated in New
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
