package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/model"
)

const DefaultRecentTurns = 3

// View is the bounded conversation memory for one call.
type View struct {
	// Recent holds the last K turns verbatim, oldest first.
	Recent []model.ConversationTurn
	// Summary covers every turn before Recent. It is zero when nothing was summarized.
	Summary model.ThreadSummary
	// Established are the seed facts, re-injected into every rendering.
	Established   []model.KnowledgeFact
	NewFacts      []model.ExtractedFact
	InferredFacts []model.ExtractedFact
	Conflicts     []model.ConflictingFactError
	OpenQuestions []string
	Annotations   []string
}

// Summarized reports whether older turns were compressed.
func (v View) Summarized() bool {
	return v.Summary.CoveredTurns > 0
}

// History renders the view for the prompt: established facts and any conflicts
// with them first, then the summary of earlier discussion with the facts and
// questions it surfaced, then the recent turns.
func (v View) History() string {
	var sb strings.Builder
	if len(v.Established) > 0 {
		sb.WriteString("## Established Facts (preserve these)\n\n")
		for _, f := range v.Established {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Question, f.Answer)
		}
		sb.WriteString("\n")
	}
	if len(v.Conflicts) > 0 {
		sb.WriteString("## Unresolved Conflicts (ask the author which holds)\n\n")
		for _, c := range v.Conflicts {
			fmt.Fprintf(&sb, "- %s: established %q (%s), now stated %q (%s)\n",
				c.Subject, c.Established, c.EstablishedRef, c.Incoming, c.IncomingRef)
		}
		sb.WriteString("\n")
	}
	if v.Summarized() {
		sb.WriteString("## Conversation Summary (earlier discussion)\n\n")
		sb.WriteString(v.Summary.Summary)
		sb.WriteString("\n\n")
		if len(v.Summary.Decisions) > 0 {
			sb.WriteString("**Decisions:**\n")
			for _, d := range v.Summary.Decisions {
				fmt.Fprintf(&sb, "- %s\n", d)
			}
			sb.WriteString("\n")
		}
	}
	if len(v.NewFacts) > 0 {
		sb.WriteString("## New Facts (stated in this thread)\n\n")
		for _, f := range v.NewFacts {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Subject, f.Value)
		}
		sb.WriteString("\n")
	}
	if len(v.OpenQuestions) > 0 {
		sb.WriteString("## Open Questions\n\n")
		for _, q := range v.OpenQuestions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
		sb.WriteString("\n")
	}
	if len(v.Recent) > 0 {
		sb.WriteString("## Recent Discussion\n\n")
		for _, t := range v.Recent {
			fmt.Fprintf(&sb, "**%s (%s):** %s\n\n", t.Author, t.Role, t.Text)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Manager keeps thread memory bounded: the last K turns stay verbatim and the
// rest is compressed by the summarizer.
type Manager struct {
	summarizer Summarizer
	cache      SummaryCache
	recent     int
}

// NewManager builds a manager. A nil cache uses an in-process cache; a
// negative recentTurns uses DefaultRecentTurns.
func NewManager(summarizer Summarizer, cache SummaryCache, recentTurns int) *Manager {
	if cache == nil {
		cache = NewInMemorySummaryCache()
	}
	if recentTurns < 0 {
		recentTurns = DefaultRecentTurns
	}
	return &Manager{summarizer: summarizer, cache: cache, recent: recentTurns}
}

func (m *Manager) RecentTurns() int {
	return m.recent
}

// Materialize builds the view of turns for the next call.
func (m *Manager) Materialize(ctx context.Context, turns []model.ConversationTurn, seed []model.KnowledgeFact) (View, error) {
	return m.materialize(ctx, turns, seed, m.recent)
}

// Close summarizes the whole thread into its final summary. The result is
// what the knowledge store accepts on closure.
func (m *Manager) Close(ctx context.Context, thread model.ThreadPhaseState, turns []model.ConversationTurn, seed []model.KnowledgeFact) (model.ThreadSummary, error) {
	view, err := m.materialize(ctx, turns, seed, 0)
	if err != nil {
		return model.ThreadSummary{}, err
	}

	summary := view.Summary
	summary.ThreadID = thread.ThreadID
	summary.ProjectID = thread.ProjectID
	summary.ThreadPhase = thread.Phase
	summary.Final = true
	summary.Facts = append(slices.Clone(view.NewFacts), view.InferredFacts...)
	summary.Conflicts = view.Conflicts
	summary.OutstandingQuestions = view.OpenQuestions
	return summary, nil
}

func (m *Manager) materialize(ctx context.Context, turns []model.ConversationTurn, seed []model.KnowledgeFact, k int) (View, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "editorial.memory.manager",
	})

	split := max(len(turns)-k, 0)
	older, recent := turns[:split], turns[split:]

	view := View{
		Recent:      slices.Clone(recent),
		Established: sortedSeed(seed),
	}

	var summarized []string
	if len(older) > 0 {
		p, err := m.summarize(ctx, older, view.Established)
		if err != nil {
			return View{}, err
		}
		view.Summary = model.ThreadSummary{
			Summary:              p.Summary,
			Decisions:            p.Decisions,
			OutstandingQuestions: p.OutstandingQuestions,
			CoveredTurns:         len(older),
		}
		view.Annotations = p.Annotations
		view.NewFacts, view.InferredFacts, view.Conflicts = classifyFacts(p.Facts, view.Established)
		view.Summary.Facts = append(slices.Clone(view.NewFacts), view.InferredFacts...)
		view.Summary.Conflicts = view.Conflicts
		summarized = p.OutstandingQuestions
	}

	// A reply after the summarized range answers what the summary left open.
	if hasAuthorTurn(recent) {
		summarized = nil
	}
	view.OpenQuestions = MergeQuestions(summarized, pendingQuestions(turns))

	if len(view.Annotations) > 0 {
		slog.WarnContext(ctx, "summary entries dropped",
			"count", len(view.Annotations),
			"annotations", view.Annotations)
	}
	return view, nil
}

func (m *Manager) summarize(ctx context.Context, turns []model.ConversationTurn, seed []model.KnowledgeFact) (parsed, error) {
	key := CacheKey(turns, seed)

	raw, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "summary cache read failed", "error", err)
	}
	if ok {
		p, err := parseSummary(raw, turns)
		if err == nil {
			slog.DebugContext(ctx, "summary cache hit", "turns", len(turns))
			return p, nil
		}
		slog.WarnContext(ctx, "cached summary unreadable, resummarizing", "error", err)
	}

	if m.summarizer == nil {
		return parsed{}, fmt.Errorf("summarizing %d turns: no summarizer configured", len(turns))
	}
	raw, err = m.summarizer.Summarize(ctx, SummaryRequest{Turns: turns, Seed: seed})
	if err != nil {
		return parsed{}, err
	}
	p, err := parseSummary(raw, turns)
	if err != nil {
		return parsed{}, err
	}
	if err := m.cache.Set(ctx, key, raw); err != nil {
		slog.WarnContext(ctx, "summary cache write failed", "error", err)
	}
	return p, nil
}

// classifyFacts splits summarizer facts into explicit new facts, inferred facts
// and conflicts with the seed. Explicit facts equal to a seed fact are not new;
// explicit facts that contradict the latest seed fact on the same subject are
// kept and flagged.
func classifyFacts(facts []model.ExtractedFact, seed []model.KnowledgeFact) (explicit, inferred []model.ExtractedFact, conflicts []model.ConflictingFactError) {
	latest := map[string]model.KnowledgeFact{}
	for _, f := range seed {
		latest[model.NormalizeKey(f.Question)] = f // seed is sorted oldest first
	}

	seen := map[string]bool{}
	for _, f := range facts {
		subject, value := model.NormalizeKey(f.Subject), model.NormalizeKey(f.Value)
		id := subject + "\x00" + value
		if seen[id+string(f.Confidence)] {
			continue
		}
		seen[id+string(f.Confidence)] = true

		if f.Confidence != model.ConfidenceExplicit {
			inferred = append(inferred, f)
			continue
		}
		if prev, ok := latest[subject]; ok {
			if model.NormalizeKey(prev.Answer) == value {
				continue
			}
			conflicts = append(conflicts, model.ConflictingFactError{
				Subject:        f.Subject,
				Established:    prev.Answer,
				EstablishedRef: factRef(prev),
				Incoming:       f.Value,
				IncomingRef:    "turn " + strconv.Itoa(f.SourceTurn),
			})
		}
		explicit = append(explicit, f)
	}

	slices.SortStableFunc(explicit, compareExtracted)
	slices.SortStableFunc(inferred, compareExtracted)
	return explicit, inferred, conflicts
}

func compareExtracted(a, b model.ExtractedFact) int {
	return cmp.Or(
		cmp.Compare(a.SourceTurn, b.SourceTurn),
		cmp.Compare(a.Subject, b.Subject),
		cmp.Compare(a.Value, b.Value),
	)
}

// sortedSeed orders facts oldest first by ExtractedAt, then ID.
func sortedSeed(seed []model.KnowledgeFact) []model.KnowledgeFact {
	out := slices.Clone(seed)
	slices.SortStableFunc(out, func(a, b model.KnowledgeFact) int {
		return cmp.Or(a.ExtractedAt.Compare(b.ExtractedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func factRef(f model.KnowledgeFact) string {
	if f.SourceThreadID == "" {
		return "fact " + strconv.FormatInt(f.ID, 10)
	}
	return "thread " + f.SourceThreadID
}

func hasAuthorTurn(turns []model.ConversationTurn) bool {
	for _, t := range turns {
		if t.Role == model.RoleAuthor && strings.TrimSpace(t.Text) != "" {
			return true
		}
	}
	return false
}
