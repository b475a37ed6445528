package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/editorial/common/llm"
	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/model"
)

// SummaryRequest is the input of one summarization: the turns to compress and
// the facts already established for the project.
type SummaryRequest struct {
	Turns []model.ConversationTurn
	Seed  []model.KnowledgeFact
}

// Summarizer compresses turns into the summary schema and returns the raw JSON
// document. The manager validates it.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (json.RawMessage, error)
}

// summaryPayload is the schema the summarizer must follow.
type summaryPayload struct {
	Summary              string        `json:"summary" jsonschema:"description=What was discussed and what was decided, under 500 words"`
	Facts                []factPayload `json:"facts" jsonschema:"description=Facts the author stated or that can be inferred about the book"`
	Decisions            []string      `json:"decisions" jsonschema:"description=Decisions made in the conversation"`
	OutstandingQuestions []string      `json:"outstanding_questions" jsonschema:"description=Questions the editor asked that the author has not answered"`
}

type factPayload struct {
	Subject    string `json:"subject" jsonschema:"description=Short topic of the fact such as 'target audience'"`
	Value      string `json:"value" jsonschema:"description=The fact itself"`
	Confidence string `json:"confidence" jsonschema:"enum=explicit,enum=inferred"`
	SourceTurn int    `json:"source_turn" jsonschema:"description=Index of the turn the fact comes from"`
}

const summarizerSystemPrompt = `You are a precise summarizer of editorial conversations between an author and their editor. Extract only the essential information.

Preserve every decision, every question the editor asked, the author's key answers and every established fact about the book.

A fact is "explicit" only when the author stated it directly. Anything you had to deduce is "inferred". Cite the turn index each fact comes from.`

// LLMSummarizer summarizes with a structured-output model at temperature 0.
type LLMSummarizer struct {
	client    llm.Client
	maxTokens int
}

func NewLLMSummarizer(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client, maxTokens: 4000}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, req SummaryRequest) (json.RawMessage, error) {
	sc := logger.StartSpan(ctx, "memory.summarize", trace.WithSpanKind(trace.SpanKindClient))
	defer sc.End()
	ctx = sc.Context()

	var raw json.RawMessage
	_, err := s.client.Chat(ctx, llm.Request{
		SystemPrompt: summarizerSystemPrompt,
		UserPrompt:   summaryPrompt(req),
		SchemaName:   "conversation_summary",
		Schema:       llm.GenerateSchema[summaryPayload](),
		MaxTokens:    s.maxTokens,
		Temperature:  llm.Temp(0),
	}, &raw)
	if err != nil {
		sc.RecordError(err)
		return nil, fmt.Errorf("summarizing %d turns: %w", len(req.Turns), err)
	}
	return raw, nil
}

func summaryPrompt(req SummaryRequest) string {
	var sb strings.Builder
	if len(req.Seed) > 0 {
		sb.WriteString("**Already established:**\n")
		for _, f := range req.Seed {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Question, f.Answer)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("CONVERSATION TO SUMMARIZE:\n\n")
	for _, t := range req.Turns {
		fmt.Fprintf(&sb, "[turn %d] %s (%s): %s\n\n", t.Index, t.Role, t.Author, t.Text)
	}
	return sb.String()
}

// parsed is a validated summarizer response.
type parsed struct {
	Summary              string
	Facts                []model.ExtractedFact
	Decisions            []string
	OutstandingQuestions []string
	Annotations          []string
}

// parseSummary validates a summarizer response against the schema. Entries
// that do not fit are dropped and reported as annotations; a document that is
// not a JSON object is an error.
func parseSummary(raw json.RawMessage, turns []model.ConversationTurn) (parsed, error) {
	var doc struct {
		Summary              json.RawMessage   `json:"summary"`
		Facts                []json.RawMessage `json:"facts"`
		Decisions            []json.RawMessage `json:"decisions"`
		OutstandingQuestions []json.RawMessage `json:"outstanding_questions"`
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return parsed{}, fmt.Errorf("parsing summary response: not a JSON object")
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return parsed{}, fmt.Errorf("parsing summary response: %w", err)
	}

	var out parsed
	if len(doc.Summary) > 0 {
		if err := json.Unmarshal(doc.Summary, &out.Summary); err != nil {
			out.Annotations = append(out.Annotations, "dropped summary: not a string")
		}
	} else {
		out.Annotations = append(out.Annotations, "summary missing")
	}

	indexes := make(map[int]bool, len(turns))
	for _, t := range turns {
		indexes[t.Index] = true
	}

	for i, entry := range doc.Facts {
		var f factPayload
		if err := json.Unmarshal(entry, &f); err != nil {
			out.Annotations = append(out.Annotations, fmt.Sprintf("dropped fact %d: %v", i, err))
			continue
		}
		f.Subject, f.Value = strings.TrimSpace(f.Subject), strings.TrimSpace(f.Value)
		conf := model.Confidence(f.Confidence)
		switch {
		case f.Subject == "" || f.Value == "":
			out.Annotations = append(out.Annotations, fmt.Sprintf("dropped fact %d: empty subject or value", i))
		case !conf.Valid():
			out.Annotations = append(out.Annotations, fmt.Sprintf("dropped fact %d: invalid confidence %q", i, f.Confidence))
		case !indexes[f.SourceTurn]:
			out.Annotations = append(out.Annotations, fmt.Sprintf("dropped fact %d: source turn %d not summarized", i, f.SourceTurn))
		default:
			out.Facts = append(out.Facts, model.ExtractedFact{
				Subject:    f.Subject,
				Value:      f.Value,
				Confidence: conf,
				SourceTurn: f.SourceTurn,
			})
		}
	}

	out.Decisions = stringEntries(doc.Decisions, "decision", &out.Annotations)
	out.OutstandingQuestions = stringEntries(doc.OutstandingQuestions, "outstanding question", &out.Annotations)
	return out, nil
}

func stringEntries(entries []json.RawMessage, kind string, annotations *[]string) []string {
	var out []string
	for i, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err != nil || strings.TrimSpace(s) == "" {
			*annotations = append(*annotations, fmt.Sprintf("dropped %s %d: not a non-empty string", kind, i))
			continue
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
