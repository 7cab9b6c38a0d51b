package agent

import (
	"fmt"
	"iter"

	"github.com/stellarlinkco/exampleqa/internal/examples"
	"go.uber.org/zap"
)

// Builder accumulates context entries for an Agent. It has a single owner
// until Build is called.
type Builder struct {
	model    Completer
	preamble string
	context  []string
	logger   *zap.Logger
}

// NewBuilder starts an empty builder bound to m. m may be nil when the agent
// is only used to render requests.
func NewBuilder(m Completer) *Builder {
	return &Builder{model: m}
}

func (b *Builder) Preamble(preamble string) *Builder {
	b.preamble = preamble
	return b
}

func (b *Builder) Logger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Context appends one entry verbatim.
func (b *Builder) Context(entry string) *Builder {
	b.context = append(b.context, entry)
	return b
}

func (b *Builder) Len() int {
	return len(b.context)
}

// Build freezes the builder into an Agent. Later changes to b do not affect it.
func (b *Builder) Build() *Agent {
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		model:    b.model,
		preamble: b.preamble,
		context:  append([]string(nil), b.context...),
		logger:   logger,
	}
}

// FormatEntry renders a document as "<label> "<path>":\n<content>", with the
// path quoted and the content untouched.
func FormatEntry(label string, doc examples.Document) string {
	return fmt.Sprintf("%s %q:\n%s", label, doc.Path, doc.Content)
}

// Assemble folds docs into b in the order they are yielded, one entry per
// document. Nothing is sorted, truncated or deduplicated.
func Assemble(b *Builder, docs iter.Seq[examples.Document], label string) *Builder {
	for doc := range docs {
		b = b.Context(FormatEntry(label, doc))
	}
	return b
}
