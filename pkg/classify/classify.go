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

// Package classify maps file names to the category directories they are sorted into.
package classify

import (
	"path/filepath"
	"strings"
)

// 🏷️ NoExtension is the category for files without an extension
const NoExtension Category = "no_extension"

// 🏷️ Category is the normalized destination subdirectory for a file
type Category string

func (c Category) String() string {
	return string(c)
}

// 🔍 Classify returns the category for a file name.
//
// Only the last dot-delimited segment counts, so "archive.tar.gz" is "gz".
// A leading dot does not start an extension (".bashrc" has none) and neither
// does a trailing one ("notes.").
func Classify(name string) Category {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return NoExtension
	}

	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return NoExtension
	}

	return Category(strings.ToLower(base[idx+1:]))
}
