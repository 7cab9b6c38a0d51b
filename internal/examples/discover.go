package examples

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// ErrBadPattern is returned by Discover for patterns that can never match.
var ErrBadPattern = doublestar.ErrBadPattern

var errStopWalk = errors.New("stop walk")

// Discover returns a lazy sequence of the regular files in fsys matching
// pattern. The pattern is checked up front so a bad pattern fails before any
// directory is read. Each range over the result walks fsys again; entries come
// back in lexical order within each directory.
func Discover(fsys fs.FS, pattern string, logger *zap.Logger) (iter.Seq[string], error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pattern, err := cleanPattern(pattern)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		err := doublestar.GlobWalk(fsys, pattern, func(p string, _ fs.DirEntry) error {
			if !yield(p) {
				return errStopWalk
			}
			return nil
		}, doublestar.WithFilesOnly())
		if err != nil && !errors.Is(err, errStopWalk) {
			logger.Warn("glob walk ended early", zap.String("pattern", pattern), zap.Error(err))
		}
	}, nil
}

func cleanPattern(pattern string) (string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return "", fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}
	if path.IsAbs(pattern) {
		return "", fmt.Errorf("%w: %q must be relative to the search root", ErrBadPattern, pattern)
	}
	for strings.HasPrefix(pattern, "./") {
		pattern = strings.TrimPrefix(pattern, "./")
	}
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return pattern, nil
}
