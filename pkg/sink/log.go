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

	"github.com/rs/zerolog"
)

// 📢 Log writes failures to the zerolog logger carried by the context
var Log FailureSink = logSink{}

type logSink struct{}

func (logSink) Record(ctx context.Context, f Failure) {
	zerolog.Ctx(ctx).Error().
		Str("source", f.Source).
		Str("destination", f.Destination).
		Str("error", f.Error).
		Msg("copy failed")
}
