package examples

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingFS records every Open so tests can prove no I/O happened.
type countingFS struct {
	fs.FS
	opens int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens++
	return c.FS.Open(name)
}

func exampleFS() fstest.MapFS {
	return fstest.MapFS{
		"start.rs":             {Data: []byte("fn start() {}\n")},
		"stop.rs":              {Data: []byte("fn stop() {}\n")},
		"README.md":            {Data: []byte("# examples\n")},
		"nested/helpers.rs":    {Data: []byte("fn helper() {}\n")},
		"nested/deep/extra.rs": {Data: []byte("fn extra() {}\n")},
		"dir.rs/inner.txt":     {Data: []byte("not a match\n")},
	}
}

func TestDiscover_TopLevelPattern(t *testing.T) {
	paths, err := Discover(exampleFS(), "*.rs", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"start.rs", "stop.rs"}, slices.Collect(paths))
}

func TestDiscover_RecursivePattern(t *testing.T) {
	paths, err := Discover(exampleFS(), "**/*.rs", nil)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"start.rs", "stop.rs", "nested/helpers.rs", "nested/deep/extra.rs"},
		slices.Collect(paths),
	)
}

func TestDiscover_DotSlashPrefix(t *testing.T) {
	paths, err := Discover(exampleFS(), "./nested/*.rs", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"nested/helpers.rs"}, slices.Collect(paths))
}

func TestDiscover_StableAcrossRanges(t *testing.T) {
	paths, err := Discover(exampleFS(), "**/*.rs", nil)
	require.NoError(t, err)

	first := slices.Collect(paths)
	second := slices.Collect(paths)
	assert.Equal(t, first, second)
}

func TestDiscover_NoMatches(t *testing.T) {
	paths, err := Discover(exampleFS(), "*.go", nil)
	require.NoError(t, err)

	assert.Empty(t, slices.Collect(paths))
}

func TestDiscover_DirectoriesAreNotMatched(t *testing.T) {
	fsys := fstest.MapFS{
		"dir.rs/inner.txt": {Data: []byte("x")},
	}
	paths, err := Discover(fsys, "*.rs", nil)
	require.NoError(t, err)

	assert.Empty(t, slices.Collect(paths))
}

func TestDiscover_InvalidPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{name: "empty", pattern: ""},
		{name: "whitespace", pattern: "   "},
		{name: "unclosed class", pattern: "[*.rs"},
		{name: "unclosed alternation", pattern: "{start,stop.rs"},
		{name: "absolute", pattern: "/tmp/*.rs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := &countingFS{FS: exampleFS()}

			paths, err := Discover(fsys, tt.pattern, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadPattern)
			assert.Nil(t, paths)
			assert.Zero(t, fsys.opens, "bad pattern must fail before any I/O")
		})
	}
}

func TestDiscover_IsLazy(t *testing.T) {
	fsys := &countingFS{FS: exampleFS()}

	paths, err := Discover(fsys, "*.rs", nil)
	require.NoError(t, err)
	assert.Zero(t, fsys.opens)

	_ = slices.Collect(paths)
	assert.NotZero(t, fsys.opens)
}

func TestDiscover_EarlyBreak(t *testing.T) {
	paths, err := Discover(exampleFS(), "**/*.rs", nil)
	require.NoError(t, err)

	var got []string
	for p := range paths {
		got = append(got, p)
		break
	}
	assert.Len(t, got, 1)
}

func TestDiscover_OnDisk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "container_management.rs"), []byte("fn stop_container() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignore me\n"), 0644))

	paths, err := Discover(os.DirFS(root), "*.rs", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"container_management.rs"}, slices.Collect(paths))
}
