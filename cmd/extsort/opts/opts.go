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

package opts

import (
	"context"
	"io"
	"os"

	"github.com/walteh/extsort/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Debug      bool
	Quiet      bool

	// Out receives console output; os.Stdout when nil
	Out io.Writer
	// WorkDir is searched for a config file when ConfigFile is empty
	WorkDir string
}

// Stdout returns the console writer
func (o *RootOpts) Stdout() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// 📂 LoadConfig loads the --config file, or looks one up from the working directory
func (o *RootOpts) LoadConfig(ctx context.Context) (*config.Config, error) {
	if o.ConfigFile != "" {
		return config.Load(ctx, o.ConfigFile)
	}

	dir := o.WorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	return config.Find(ctx, dir)
}
