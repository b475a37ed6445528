package phase

import (
	"fmt"
	"strings"

	"basegraph.app/editorial/internal/model"
)

// EmotionalState is the author's detected state of mind.
type EmotionalState string

const (
	EmotionVulnerable EmotionalState = "vulnerable"
	EmotionConfident  EmotionalState = "confident"
	EmotionFrustrated EmotionalState = "frustrated"
	EmotionBlocked    EmotionalState = "blocked"
	EmotionDefensive  EmotionalState = "defensive"
	EmotionExcited    EmotionalState = "excited"
	EmotionUncertain  EmotionalState = "uncertain"
)

type emotion struct {
	state      EmotionalState
	approach   string
	indicators []string
}

// Declaration order breaks score ties.
var emotions = []emotion{
	{EmotionVulnerable, "early or fragile draft; lead with encouragement", []string{
		"this is rough", "first draft", "not sure if", "probably bad", "be gentle", "nervous", "scared to share",
	}},
	{EmotionConfident, "ready for rigorous feedback", []string{
		"ready for feedback", "tear it apart", "don't hold back", "give me the hard truth", "almost done", "final draft",
	}},
	{EmotionFrustrated, "needs empathy before critique", []string{
		"stuck", "frustrated", "can't figure out", "nothing works", "hate this", "ugh", "argh",
	}},
	{EmotionBlocked, "needs help getting unstuck", []string{
		"blocked", "blank page", "can't start", "don't know where to begin", "paralyzed", "frozen",
	}},
	{EmotionDefensive, "needs to feel heard before anything else", []string{
		"but i like it", "you don't understand", "that's intentional", "i disagree", "you're wrong",
	}},
	{EmotionExcited, "riding momentum; support it", []string{
		"i love this", "breakthrough", "finally", "it clicked", "so excited", "can't wait",
	}},
	{EmotionUncertain, "needs clarity and direction", []string{
		"not sure", "what do you think", "is this right", "confused", "lost", "help",
	}},
}

// DetectEmotionalState scores text against each state's indicator phrases and
// returns the highest scoring state. It reports false when nothing matches.
func DetectEmotionalState(text string) (EmotionalState, bool) {
	lower := strings.ReplaceAll(strings.ToLower(text), "’", "'")
	best, bestScore := EmotionalState(""), 0
	for _, e := range emotions {
		score := 0
		for _, ind := range e.indicators {
			if strings.Contains(lower, ind) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = e.state, score
		}
	}
	return best, bestScore > 0
}

// Approach is a one-line description of how to respond to the state.
func (s EmotionalState) Approach() string {
	for _, e := range emotions {
		if e.state == s {
			return e.approach
		}
	}
	return ""
}

type bookPhase struct {
	name           string
	description    string
	editorFocus    []string
	feedbackStyle  string
	criticismLevel string
}

var bookPhases = map[model.ProjectPhase]bookPhase{
	model.ProjectPhaseNew: {
		name:        "New Project",
		description: "The project is just getting started. Ideas are still forming.",
		editorFocus: []string{
			"Help the author find the core of the book",
			"Encourage exploration over judgment",
			"Ask about audience and intent",
		},
		feedbackStyle:  "encouraging",
		criticismLevel: "minimal",
	},
	model.ProjectPhaseDrafting: {
		name:        "Drafting",
		description: "The author is producing first drafts. Momentum matters more than perfection.",
		editorFocus: []string{
			"Balance encouragement with substantive feedback",
			"Flag structural problems early, leave line edits for later",
			"Keep the author writing",
		},
		feedbackStyle:  "balanced",
		criticismLevel: "moderate",
	},
	model.ProjectPhaseRevising: {
		name:        "Revising",
		description: "A full draft exists. The work is now about making it better.",
		editorFocus: []string{
			"Challenge structure, pacing and arcs",
			"Cut what does not serve the book",
			"Hold every chapter to the book's stated intent",
		},
		feedbackStyle:  "rigorous",
		criticismLevel: "high",
	},
	model.ProjectPhasePolishing: {
		name:        "Polishing",
		description: "Structure is settled. Attention moves to the sentence level.",
		editorFocus: []string{
			"Line-level precision on word choice and rhythm",
			"Consistency of terminology and voice",
			"No new structural changes unless critical",
		},
		feedbackStyle:  "precise",
		criticismLevel: "detailed",
	},
	model.ProjectPhaseComplete: {
		name:        "Complete",
		description: "The book is finished.",
		editorFocus: []string{
			"Celebrate the accomplishment",
			"Reflect on what the author learned",
		},
		feedbackStyle:  "celebratory",
		criticismLevel: "none",
	},
}

// FeedbackStyle returns the style name for a project phase.
func FeedbackStyle(p model.ProjectPhase) string {
	return bookPhases[p].feedbackStyle
}

// CriticismLevel returns the criticism level for a project phase.
func CriticismLevel(p model.ProjectPhase) string {
	return bookPhases[p].criticismLevel
}

// BookPhaseGuidance renders the project-level guidance block.
func BookPhaseGuidance(p model.ProjectPhase) string {
	cfg, ok := bookPhases[p]
	if !ok {
		cfg = bookPhases[model.ProjectPhaseNew]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Book Phase: %s\n\n", cfg.name)
	sb.WriteString(cfg.description)
	sb.WriteString("\n\n**Your focus at this phase:**\n")
	for _, f := range cfg.editorFocus {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	fmt.Fprintf(&sb, "\n**Feedback style:** %s\n", cfg.feedbackStyle)
	fmt.Fprintf(&sb, "**Criticism level:** %s", cfg.criticismLevel)
	return sb.String()
}

var threadPrompts = map[model.ThreadPhase]string{
	model.ThreadPhaseDiscovery: `You are in DISCOVERY mode. Your job is to ASK, not TELL.

Before providing any editorial feedback, you must understand:
1. Where the author is emotionally
2. What they're trying to achieve
3. What feedback would actually help them right now

Ask questions. Listen. Understand. Only then can you truly help.`,
	model.ThreadPhaseFeedback: `You are in FEEDBACK mode. You've completed discovery and understand
the author's context, goals, and emotional state.

Structure your feedback with clear priority tiers:
1. CRITICAL: Must address before publishing
2. RECOMMENDED: Would strengthen the work
3. OPTIONAL: Style preferences, take or leave

Remember what you learned in discovery. Tailor your feedback accordingly.`,
	model.ThreadPhaseRevision: `The author is now REVISING based on your feedback.

Your role shifts:
- Answer questions about your feedback
- Clarify suggestions when asked
- Offer encouragement for good changes
- Gently redirect if they're going off track

Be responsive, not directive.`,
	model.ThreadPhaseHold: `This piece is on HOLD for author reflection.

The author needs time to sit with this work. Do not push for action.
If they return, ask how their thinking has evolved.`,
	model.ThreadPhaseComplete: `This thread is COMPLETE. Close it out briefly: acknowledge the work
done and note anything the author may want to carry into the next piece.`,
}

// ThreadPhasePrompt returns the system intro for a thread phase.
func ThreadPhasePrompt(p model.ThreadPhase) string {
	if prompt, ok := threadPrompts[p]; ok {
		return prompt
	}
	return threadPrompts[model.ThreadPhaseDiscovery]
}

// GuidanceInput collects the volatile inputs of the phase guidance section.
type GuidanceInput struct {
	Project       model.ProjectPhase
	Thread        model.ThreadPhase
	Emotion       EmotionalState
	OpenQuestions []string
	Discovery     *model.PersonaDiscovery
}

// Guidance renders the phase guidance section: book phase, thread phase
// prompt, the author's detected state, discovery questions and reminders.
func Guidance(in GuidanceInput) string {
	parts := []string{
		BookPhaseGuidance(in.Project),
		"## Thread Phase: " + strings.ToUpper(string(in.Thread)) + "\n\n" + ThreadPhasePrompt(in.Thread),
	}

	if in.Emotion != "" {
		parts = append(parts, fmt.Sprintf("## Author State\n\nThe author seems %s: %s.", in.Emotion, in.Emotion.Approach()))
	}

	if in.Thread == model.ThreadPhaseDiscovery && in.Discovery != nil {
		if d := formatDiscovery(*in.Discovery); d != "" {
			parts = append(parts, d)
		}
	}

	if len(in.OpenQuestions) > 0 {
		var sb strings.Builder
		sb.WriteString("## Outstanding Questions\n\nYou asked these earlier and the author has not answered yet:\n")
		for _, q := range in.OpenQuestions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
		parts = append(parts, strings.TrimRight(sb.String(), "\n"))
	}

	return strings.Join(parts, "\n\n")
}

func formatDiscovery(d model.PersonaDiscovery) string {
	var sb strings.Builder
	if d.Philosophy != "" {
		sb.WriteString("## Discovery Approach\n\n")
		sb.WriteString(strings.TrimSpace(d.Philosophy))
		sb.WriteString("\n")
	}
	groups := []struct {
		title string
		qs    []string
	}{
		{"Intake questions", d.IntakeQuestions},
		{"Intent questions", d.IntentQuestions},
		{"Socratic questions", d.SocraticQuestions},
	}
	for _, g := range groups {
		if len(g.qs) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n**%s:**\n", g.title)
		for _, q := range g.qs {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}
	return strings.TrimSpace(sb.String())
}
