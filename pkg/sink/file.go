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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📄 File appends failures to a file as JSON lines
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *json.Encoder
}

// 🏭 OpenFile opens path for appending, creating it and its parent directories
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Errorf("creating failure log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Errorf("opening failure log: %w", err)
	}

	return &File{path: path, f: f, enc: json.NewEncoder(f)}, nil
}

// Path returns the log file location
func (s *File) Path() string {
	return s.path
}

func (s *File) Record(ctx context.Context, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return
	}
	if err := s.enc.Encode(f); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("log", s.path).Msg("writing failure record")
	}
}

// Close flushes and closes the file
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errors.Errorf("closing failure log: %w", err)
	}
	return nil
}
