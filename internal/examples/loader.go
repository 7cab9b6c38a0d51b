package examples

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"unicode/utf8"

	"go.uber.org/zap"
)

var ErrNotUTF8 = errors.New("content is not valid UTF-8")

// Document is a source file that was read successfully.
type Document struct {
	Path    string
	Content string
}

// Result is the outcome of reading one discovered path. Err is set when the
// path has to be skipped; Document.Path is always populated.
type Result struct {
	Document
	Err error
}

func (r Result) Skipped() bool {
	return r.Err != nil
}

// Read maps every path to a Result without filtering anything out.
func Read(fsys fs.FS, paths iter.Seq[string]) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for p := range paths {
			if !yield(readOne(fsys, p)) {
				return
			}
		}
	}
}

func readOne(fsys fs.FS, p string) Result {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Result{Document: Document{Path: p}, Err: fmt.Errorf("read %q: %w", p, err)}
	}
	if !utf8.Valid(data) {
		return Result{Document: Document{Path: p}, Err: fmt.Errorf("read %q: %w", p, ErrNotUTF8)}
	}
	return Result{Document: Document{Path: p, Content: string(data)}}
}

// Load yields the documents behind paths that could be read, in path order.
// Unreadable paths are dropped; the pipeline never fails because of one file.
func Load(fsys fs.FS, paths iter.Seq[string], logger *zap.Logger) iter.Seq[Document] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(yield func(Document) bool) {
		var loaded, dropped int
		defer func() {
			logger.Debug("examples loaded", zap.Int("loaded", loaded), zap.Int("dropped", dropped))
		}()

		for res := range Read(fsys, paths) {
			if res.Skipped() {
				dropped++
				logger.Debug("skip unreadable example", zap.String("path", res.Path), zap.Error(res.Err))
				continue
			}
			loaded++
			if !yield(res.Document) {
				return
			}
		}
	}
}
