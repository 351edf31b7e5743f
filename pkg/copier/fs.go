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
	"io"
	"os"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/singleflight"
)

// 📁 dirCache creates category directories once per pool.
// Concurrent callers for the same directory share a single MkdirAll; later
// callers skip the syscall entirely.
type dirCache struct {
	group   singleflight.Group
	created sync.Map
}

func (c *dirCache) ensure(dir string) error {
	if _, ok := c.created.Load(dir); ok {
		return nil
	}

	_, err, _ := c.group.Do(dir, func() (any, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Errorf("creating category directory: %w", err)
		}
		c.created.Store(dir, struct{}{})
		return nil, nil
	})
	return err
}

// tempPattern names in-progress copies inside a category directory
const tempPattern = ".extsort-*.tmp"

// 📄 copyFile copies task.Source into its category directory.
// Bytes go to a temp file next to the destination which is renamed into
// place, so an existing copy is replaced whole or not at all.
func copyFile(task Task) (Action, int64, error) {
	src, err := os.Open(task.Source.Path)
	if err != nil {
		return ActionNone, 0, errors.Errorf("opening source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return ActionNone, 0, errors.Errorf("reading source info: %w", err)
	}
	if !info.Mode().IsRegular() {
		return ActionNone, 0, errors.Errorf("source is no longer a regular file")
	}

	dst := task.Destination()
	action := ActionCreated
	if existing, err := os.Lstat(dst); err == nil {
		if existing.IsDir() {
			return ActionNone, 0, errors.Errorf("destination %s is a directory", dst)
		}
		action = ActionReplaced
	}

	// the source name is not reused so names near NAME_MAX still fit
	tmp, err := os.CreateTemp(task.Dir(), tempPattern)
	if err != nil {
		return ActionNone, 0, errors.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, src)
	if err != nil {
		_ = tmp.Close()
		return ActionNone, n, errors.Errorf("copying bytes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ActionNone, n, errors.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return ActionNone, n, errors.Errorf("preserving permissions: %w", err)
	}
	// zero atime leaves it untouched
	if err := os.Chtimes(tmpPath, time.Time{}, info.ModTime()); err != nil {
		return ActionNone, n, errors.Errorf("preserving modification time: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return ActionNone, n, errors.Errorf("moving into place: %w", err)
	}
	committed = true

	return action, n, nil
}
