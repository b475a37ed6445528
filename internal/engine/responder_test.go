package engine_test

import (
	"context"

	"basegraph.app/editorial/common/llm"
	"basegraph.app/editorial/internal/engine"
	"basegraph.app/editorial/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LLMResponder", func() {
	var (
		client *mockCompletion
		bundle model.ContextBundle
	)

	BeforeEach(func() {
		client = &mockCompletion{CompleteFn: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "  Strong opening.  ", FinishReason: "stop"}, nil
		}}
		bundle = model.ContextBundle{
			ThreadID: "t1",
			Sections: []model.Section{
				{Name: model.SectionPersona, Content: "persona", Cacheable: true},
				{Name: model.SectionRules, Content: "rules", Cacheable: true},
				{Name: model.SectionKnowledge, Content: "knowledge", Cacheable: true},
				{Name: model.SectionPhaseGuidance, Content: "guidance"},
				{Name: model.SectionHistory, Content: "history"},
				{Name: model.SectionTask, Content: "task"},
			},
		}
	})

	It("sends the stable sections as system blocks and the rest as the user turn", func() {
		reply, err := engine.NewLLMResponder(client, 2048).Respond(context.Background(), bundle)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("Strong opening."))

		Expect(client.requests).To(HaveLen(1))
		req := client.requests[0]
		Expect(req.MaxTokens).To(Equal(2048))
		Expect(req.System).To(Equal([]llm.PromptBlock{
			{Text: "persona", Cacheable: true},
			{Text: "rules", Cacheable: true},
			{Text: "knowledge", Cacheable: true},
			{Text: "guidance"},
		}))
		Expect(req.Messages).To(HaveLen(1))
		Expect(req.Messages[0].Role).To(Equal("user"))
		Expect(req.Messages[0].Content).To(Equal("history\n\n---\n\ntask"))
	})

	It("rejects an empty reply", func() {
		client.CompleteFn = func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{FinishReason: "length"}, nil
		}
		_, err := engine.NewLLMResponder(client, 0).Respond(context.Background(), bundle)
		Expect(err).To(MatchError(ContainSubstring("empty reply")))
	})
})
