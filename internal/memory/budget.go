package memory

import "basegraph.app/editorial/internal/model"

const (
	DefaultContextWindow = 128_000
	DefaultMaxOutput     = 16_000

	systemPercent       = 30
	conversationPercent = 40
	contentPercent      = 30
	summarizePercent    = 80
	charsPerToken       = 4
)

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Budget splits the input window 30/40/30 between system prompt, conversation
// history and current content.
type Budget struct {
	ContextWindow int
	MaxOutput     int
}

func (b Budget) available() int {
	window := b.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}
	out := b.MaxOutput
	if out <= 0 {
		out = DefaultMaxOutput
	}
	return max(window-out, 0)
}

func (b Budget) SystemBudget() int       { return b.available() * systemPercent / 100 }
func (b Budget) ConversationBudget() int { return b.available() * conversationPercent / 100 }
func (b Budget) ContentBudget() int      { return b.available() * contentPercent / 100 }

// Measure estimates usage for the three prompt parts. Summarization is needed
// once the conversation overflows its share or total usage passes 80% of the
// available input.
func (b Budget) Measure(system, conversation, content string) model.TokenBudget {
	tb := model.TokenBudget{
		Limit:        b.available(),
		System:       EstimateTokens(system),
		Conversation: EstimateTokens(conversation),
		Content:      EstimateTokens(content),
	}
	tb.Used = tb.System + tb.Conversation + tb.Content
	tb.NeedsSummarization = tb.Conversation > b.ConversationBudget() ||
		tb.Used*100 > tb.Limit*summarizePercent
	return tb
}
