package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/editorial/common/llm"
	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/model"
)

// ThreadSource reads a thread and its labels from the issue tracker.
type ThreadSource interface {
	Fetch(ctx context.Context, projectID, threadID string) (model.ThreadContent, error)
}

// Responder turns an assembled bundle into the editor's reply.
type Responder interface {
	Respond(ctx context.Context, bundle model.ContextBundle) (string, error)
}

// Publication is what goes back to the tracker after a committed event.
type Publication struct {
	ProjectID    string
	ThreadID     string
	Reply        string
	ThreadLabel  string
	ProjectLabel string
}

// Publisher posts replies and phase labels.
type Publisher interface {
	Publish(ctx context.Context, pub Publication) error
}

// LLMResponder sends the cacheable sections and phase guidance as system
// blocks and the history and task as the user message.
type LLMResponder struct {
	client    llm.CompletionClient
	maxTokens int
}

func NewLLMResponder(client llm.CompletionClient, maxTokens int) *LLMResponder {
	return &LLMResponder{client: client, maxTokens: maxTokens}
}

func (r *LLMResponder) Respond(ctx context.Context, bundle model.ContextBundle) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "editorial.engine.responder"})

	req := buildCompletionRequest(bundle, r.maxTokens)
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("bundle for thread %s has no user content", bundle.ThreadID)
	}

	sc := logger.StartSpan(ctx, "engine.respond", trace.WithSpanKind(trace.SpanKindClient))
	defer sc.End()
	ctx = sc.Context()

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		sc.RecordError(err)
		return "", fmt.Errorf("completing reply: %w", err)
	}

	slog.InfoContext(ctx, "editor reply generated",
		"model", r.client.Model(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"cache_read_tokens", resp.CacheReadTokens,
		"cache_write_tokens", resp.CacheWriteTokens,
		"finish_reason", resp.FinishReason)

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("empty reply (finish reason %q)", resp.FinishReason)
	}
	return reply, nil
}

func buildCompletionRequest(bundle model.ContextBundle, maxTokens int) llm.CompletionRequest {
	req := llm.CompletionRequest{MaxTokens: maxTokens}
	var user []string
	for _, s := range bundle.Sections {
		switch s.Name {
		case model.SectionHistory, model.SectionTask:
			if strings.TrimSpace(s.Content) != "" {
				user = append(user, s.Content)
			}
		default:
			req.System = append(req.System, llm.PromptBlock{Text: s.Content, Cacheable: s.Cacheable})
		}
	}
	if len(user) > 0 {
		req.Messages = []llm.Message{{Role: "user", Content: strings.Join(user, "\n\n---\n\n")}}
	}
	return req
}
