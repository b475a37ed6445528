package memory_test

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/model"
)

type mockSummarizer struct {
	SummarizeFn func(ctx context.Context, req memory.SummaryRequest) (json.RawMessage, error)
	calls       []memory.SummaryRequest
}

func (m *mockSummarizer) Summarize(ctx context.Context, req memory.SummaryRequest) (json.RawMessage, error) {
	m.calls = append(m.calls, req)
	if m.SummarizeFn != nil {
		return m.SummarizeFn(ctx, req)
	}
	return json.RawMessage(`{"summary":"nothing much","facts":[],"decisions":[],"outstanding_questions":[]}`), nil
}

func respond(doc string) func(context.Context, memory.SummaryRequest) (json.RawMessage, error) {
	return func(context.Context, memory.SummaryRequest) (json.RawMessage, error) {
		return json.RawMessage(doc), nil
	}
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func makeTurns(n int) []model.ConversationTurn {
	turns := make([]model.ConversationTurn, n)
	for i := range turns {
		role, who := model.RoleAuthor, "alice"
		if i%2 == 1 {
			role, who = model.RoleEditor, "margot"
		}
		turns[i] = model.ConversationTurn{
			Index:     i,
			Role:      role,
			Author:    who,
			Text:      fmt.Sprintf("turn %d text", i),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}
	}
	return turns
}
