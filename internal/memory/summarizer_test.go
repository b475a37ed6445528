package memory_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/common/llm"
	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/model"
)

type mockLLM struct {
	ChatFn func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	last   llm.Request
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.last = req
	return m.ChatFn(ctx, req, result)
}

func (m *mockLLM) Model() string { return "mock" }

var _ = Describe("LLMSummarizer", func() {
	It("asks for the conversation_summary schema at temperature 0 and returns the raw document", func() {
		client := &mockLLM{ChatFn: func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
			raw := result.(*json.RawMessage)
			*raw = json.RawMessage(`{"summary":"s","facts":[],"decisions":[],"outstanding_questions":[]}`)
			return &llm.Response{}, nil
		}}

		out, err := memory.NewLLMSummarizer(client).Summarize(context.Background(), memory.SummaryRequest{
			Turns: makeTurns(4),
			Seed:  []model.KnowledgeFact{{Question: "genre", Answer: "literary fiction"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring(`"summary":"s"`))

		Expect(client.last.SchemaName).To(Equal("conversation_summary"))
		Expect(client.last.Schema).NotTo(BeNil())
		Expect(client.last.Temperature).NotTo(BeNil())
		Expect(*client.last.Temperature).To(BeZero())
		Expect(client.last.UserPrompt).To(ContainSubstring("literary fiction"))
	})

	It("wraps client errors with the turn count", func() {
		client := &mockLLM{ChatFn: func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, llm.ErrTruncated
		}}

		_, err := memory.NewLLMSummarizer(client).Summarize(context.Background(), memory.SummaryRequest{Turns: makeTurns(2)})
		Expect(err).To(MatchError(ContainSubstring("summarizing 2 turns")))
		Expect(errors.Is(err, llm.ErrTruncated)).To(BeTrue())
	})
})
