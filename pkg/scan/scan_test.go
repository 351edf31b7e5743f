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

package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// 🧪 writeTree creates the given slash-separated files under root
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "creating parent dir")
		require.NoError(t, os.WriteFile(path, []byte("content of "+f), 0o644), "writing %s", f)
	}
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func relPaths(ctx context.Context, s *Scanner) []string {
	var out []string
	for e := range s.Entries(ctx) {
		out = append(out, e.RelPath)
	}
	sort.Strings(out)
	return out
}

func TestNewValidatesRoot(t *testing.T) {
	tmp := t.TempDir()
	writeTree(t, tmp, "file.txt")

	tests := []struct {
		name    string
		root    string
		opts    Options
		wantErr error
		errText string
	}{
		{
			name:    "missing_root",
			root:    filepath.Join(tmp, "nope"),
			wantErr: ErrSourceNotFound,
		},
		{
			name:    "root_is_file",
			root:    filepath.Join(tmp, "file.txt"),
			wantErr: ErrSourceNotFound,
			errText: "not a directory",
		},
		{
			name:    "bad_pattern",
			root:    tmp,
			opts:    Options{Exclude: []string{"[unterminated"}},
			errText: "invalid pattern",
		},
		{
			name: "valid_root",
			root: tmp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.root, tt.opts)
			if tt.wantErr == nil && tt.errText == "" {
				require.NoError(t, err, "New should succeed")
				assert.True(t, filepath.IsAbs(s.Root()), "root should be absolute")
				return
			}
			require.Error(t, err, "New should fail")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error should wrap %v, got %v", tt.wantErr, err)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText, "error should explain the failure")
			}
		})
	}
}

func TestEntries(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		opts  Options
		want  []string
	}{
		{
			name:  "recursive_walk",
			files: []string{"a.txt", "b.TXT", "c", "deep/er/still/d.go"},
			want:  []string{"a.txt", "b.TXT", "c", "deep/er/still/d.go"},
		},
		{
			name:  "empty_tree",
			files: nil,
			want:  nil,
		},
		{
			name:  "include_filter",
			files: []string{"a.txt", "b.jpg", "sub/c.txt"},
			opts:  Options{Include: []string{"**/*.txt"}},
			want:  []string{"a.txt", "sub/c.txt"},
		},
		{
			name:  "exclude_prunes_directory",
			files: []string{"a.txt", "node_modules/x.js", "node_modules/deep/y.js", "src/z.js"},
			opts:  Options{Exclude: []string{"node_modules"}},
			want:  []string{"a.txt", "src/z.js"},
		},
		{
			name:  "exclude_wins_over_include",
			files: []string{"keep.log", "drop.log"},
			opts:  Options{Include: []string{"*.log"}, Exclude: []string{"drop.*"}},
			want:  []string{"keep.log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, tt.files...)

			s, err := New(root, tt.opts)
			require.NoError(t, err, "New should succeed")

			assert.Equal(t, tt.want, relPaths(testContext(t), s), "entries should match")
		})
	}
}

func TestEntriesSkipDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "out/txt/a.txt", "sub/b.txt")

	s, err := New(root, Options{SkipDirs: []string{filepath.Join(root, "out")}})
	require.NoError(t, err, "New should succeed")

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, relPaths(testContext(t), s), "skipped dir should not be walked")
}

func TestEntryFields(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "docs/report.TXT")

	s, err := New(root, Options{})
	require.NoError(t, err, "New should succeed")

	var entries []Entry
	for e := range s.Entries(testContext(t)) {
		entries = append(entries, e)
	}
	require.Len(t, entries, 1, "one file expected")

	e := entries[0]
	assert.Equal(t, filepath.Join(s.Root(), "docs", "report.TXT"), e.Path, "path should be absolute")
	assert.Equal(t, "docs/report.TXT", e.RelPath, "relative path should be slash separated")
	assert.Equal(t, "report.TXT", e.Name, "name should be the base name")
	assert.Equal(t, int64(len("content of docs/report.TXT")), e.Size, "size should match")
	assert.False(t, e.ModTime.IsZero(), "mod time should be set")
}

func TestEntriesSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeTree(t, root, "real.txt", "dir/inner.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")), "creating file symlink")
	require.NoError(t, os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "dirlink")), "creating dir symlink")

	s, err := New(root, Options{})
	require.NoError(t, err, "New should succeed")

	assert.Equal(t, []string{"dir/inner.txt", "real.txt"}, relPaths(testContext(t), s), "only regular files should be yielded")
}

func TestEntriesUnreadableSubdirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	root := t.TempDir()
	writeTree(t, root, "ok/a.txt", "locked/b.txt", "c.txt")

	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000), "locking directory")
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var warnings []Warning
	s, err := New(root, Options{OnWarning: func(w Warning) { warnings = append(warnings, w) }})
	require.NoError(t, err, "New should succeed")

	assert.Equal(t, []string{"c.txt", "ok/a.txt"}, relPaths(testContext(t), s), "siblings should still be scanned")
	require.Len(t, warnings, 1, "one warning expected")
	assert.Equal(t, filepath.Join(s.Root(), "locked"), warnings[0].Path, "warning should name the locked dir")
	assert.ErrorIs(t, warnings[0], os.ErrPermission, "warning should carry the permission error")
}

func TestEntriesStopsEarly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b.txt", "c.txt", "d.txt")

	s, err := New(root, Options{})
	require.NoError(t, err, "New should succeed")

	seen := 0
	for range s.Entries(testContext(t)) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen, "iteration should stop when the consumer breaks")
}

func TestEntriesCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b.txt")

	s, err := New(root, Options{})
	require.NoError(t, err, "New should succeed")

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	var warnings []Warning
	s.opts.OnWarning = func(w Warning) { warnings = append(warnings, w) }

	got := slices.Collect(s.Entries(ctx))
	assert.Empty(t, got, "no entries after cancellation")
	assert.Empty(t, warnings, "cancellation is not a warning")
}

func TestNewFollowsLinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tmp := t.TempDir()
	target := filepath.Join(tmp, "real")
	writeTree(t, target, "a.txt", "sub/b.txt")
	link := filepath.Join(tmp, "link")
	require.NoError(t, os.Symlink(target, link), "creating root symlink")

	s, err := New(link, Options{})
	require.NoError(t, err, "a linked root should be accepted")

	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, s.Root(), "root should be resolved")
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, relPaths(testContext(t), s), "files behind the link should be yielded")
}

func TestEntriesSkipDirsThroughLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	writeTree(t, root, "a.txt", "out/txt/a.txt")
	link := filepath.Join(tmp, "link")
	require.NoError(t, os.Symlink(root, link), "creating symlink")

	s, err := New(link, Options{SkipDirs: []string{filepath.Join(link, "out")}})
	require.NoError(t, err, "New should succeed")

	assert.Equal(t, []string{"a.txt"}, relPaths(testContext(t), s), "skip dir named through the link should be pruned")
}

func TestNewUnreadableRoot(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	root := t.TempDir()
	writeTree(t, root, "a.txt")
	require.NoError(t, os.Chmod(root, 0o000), "locking root")
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	_, err := New(root, Options{})
	require.Error(t, err, "an unreadable root should be rejected")
	assert.True(t, errors.Is(err, ErrSourceNotFound), "error should wrap ErrSourceNotFound, got %v", err)
	assert.Contains(t, err.Error(), "not readable")
}

func TestResolvePath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tmp, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(tmp, "real"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(tmp, "real"), filepath.Join(tmp, "link")))

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "existing_dir", path: filepath.Join(tmp, "real"), want: filepath.Join(tmp, "real")},
		{name: "linked_dir", path: filepath.Join(tmp, "link"), want: filepath.Join(tmp, "real")},
		{name: "missing_under_link", path: filepath.Join(tmp, "link", "new", "deeper"), want: filepath.Join(tmp, "real", "new", "deeper")},
		{name: "missing_plain", path: filepath.Join(tmp, "nope"), want: filepath.Join(tmp, "nope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntriesVanishedSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b/inner.txt", "c.txt")

	var warnings []Warning
	s, err := New(root, Options{OnWarning: func(w Warning) { warnings = append(warnings, w) }})
	require.NoError(t, err, "New should succeed")

	var got []string
	for e := range s.Entries(testContext(t)) {
		got = append(got, e.RelPath)
		// b is listed by the root but gone before the walk reads it
		if e.RelPath == "a.txt" {
			require.NoError(t, os.RemoveAll(filepath.Join(root, "b")))
		}
	}

	assert.Equal(t, []string{"a.txt", "c.txt"}, got, "siblings should still be scanned")
	require.Len(t, warnings, 1, "one warning expected")
	assert.Equal(t, filepath.Join(s.Root(), "b"), warnings[0].Path, "warning should name the vanished dir")
	assert.ErrorIs(t, warnings[0], os.ErrNotExist, "warning should carry the cause")
}
