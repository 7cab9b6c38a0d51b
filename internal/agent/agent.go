package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrNoModel       = errors.New("agent has no completion model")
	ErrEmptyResponse = errors.New("empty response from completion model")
)

// Completer is the part of a completion model the agent needs. model.Model
// from agentsdk-go satisfies it.
type Completer interface {
	Complete(ctx context.Context, req model.Request) (*model.Response, error)
}

// Agent is a built, read-only prompt context bound to a completion model.
type Agent struct {
	model    Completer
	preamble string
	context  []string
	logger   *zap.Logger
}

// Context returns a copy of the context entries in the order they were added.
func (a *Agent) Context() []string {
	return append([]string(nil), a.context...)
}

func (a *Agent) Preamble() string {
	return a.preamble
}

// Request renders the single completion request sent for question. Context
// entries are attached ahead of the question in one user message; with no
// entries the message is the question alone.
func (a *Agent) Request(question string) model.Request {
	content := question
	if len(a.context) > 0 {
		content = attachments(a.context) + "\n" + question
	}
	return model.Request{
		System: a.preamble,
		Messages: []model.Message{{
			Role:    "user",
			Content: content,
		}},
	}
}

// Prompt sends exactly one request and returns the model's answer. No retry
// happens here; errors from the model are returned as-is, wrapped.
func (a *Agent) Prompt(ctx context.Context, question string) (string, error) {
	if a.model == nil {
		return "", ErrNoModel
	}

	req := a.Request(question)
	a.logger.Debug("prompt agent",
		zap.Int("documents", len(a.context)),
		zap.Int("context_bytes", contextBytes(a.context)),
		zap.Int("question_bytes", len(question)),
	)

	resp, err := a.model.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	a.logger.Debug("prompt answered",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Message.Content, nil
}

func attachments(entries []string) string {
	files := lo.Map(entries, func(entry string, i int) string {
		return fmt.Sprintf("<file id: doc_%d>\n%s\n</file>\n", i, entry)
	})
	return "<attachments>\n" + strings.Join(files, "") + "</attachments>\n"
}

func contextBytes(entries []string) int {
	return lo.SumBy(entries, func(entry string) int { return len(entry) })
}
