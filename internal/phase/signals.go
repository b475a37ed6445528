package phase

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"basegraph.app/editorial/internal/model"
)

// textPattern maps a phrase pattern in author text to an explicit signal value.
type textPattern struct {
	value string
	re    *regexp.Regexp
}

var projectTextPatterns = []textPattern{
	{model.SignalReadyToRevise, regexp.MustCompile(`\b(ready to revise|ready for revisions?|start revising)\b`)},
	{model.SignalKeepDrafting, regexp.MustCompile(`\b(keep drafting|still drafting|not ready to revise)\b`)},
	{model.SignalReadyToPolish, regexp.MustCompile(`\b(ready to polish|ready for polish(ing)?|start polishing)\b`)},
	{model.SignalProjectComplete, regexp.MustCompile(`\b((book|manuscript|project) is (complete|finished|done)|mark (the )?(book|manuscript|project) (as )?complete)\b`)},
	{model.SignalRevertToPrefix, regexp.MustCompile(`\b(?:revert|go back|move back|return) to (new|drafting|revising|polishing)\b`)},
}

var threadTextPatterns = []textPattern{
	{model.SignalSkipDiscovery, regexp.MustCompile(`(skip discovery|just review|skip the questions|don't ask|give me feedback|tear it apart)`)},
	{model.SignalIncorporating, regexp.MustCompile(`\b(incorporating (the |your |these )?(changes|feedback|notes|suggestions)|working on (the )?revisions?|making (the |these )?changes)\b`)},
	{model.SignalPause, regexp.MustCompile(`\b(pause (this|the thread|here)|put (this|it) on hold|on hold for now|need (some )?time to (think|reflect))\b`)},
	{model.SignalResume, regexp.MustCompile(`\b(resume|ready to continue|picking (this|it) back up|let'?s pick (this|it) back up|back to (this|it))\b`)},
	{model.SignalClose, regexp.MustCompile(`\b(close (this|the) thread|we'?re done here)\b`)},
}

// Label vocabulary. Phase labels written by the publisher are not signals,
// except phase:hold, which authors set by hand to pause a thread.
var (
	skipDiscoveryLabels = []string{"quick-review", "phase:feedback", "phase:revision", "phase:polish"}
	projectLabelSignals = map[string]string{
		"keep-drafting":   model.SignalKeepDrafting,
		"ready-to-revise": model.SignalReadyToRevise,
		"ready-to-polish": model.SignalReadyToPolish,
		"book:complete":   model.SignalProjectComplete,
	}
)

type match struct {
	value      string
	start, end int
	phrase     string
}

// scan finds every pattern match in text. A match nested inside a longer match
// is dropped, so "not ready to revise" does not also read as "ready to revise".
func scan(text string, patterns []textPattern) []match {
	lower := strings.ReplaceAll(strings.ToLower(text), "\u2019", "'")
	var found []match
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(lower, -1) {
			m := match{value: p.value, start: loc[0], end: loc[1], phrase: lower[loc[0]:loc[1]]}
			if p.value == model.SignalRevertToPrefix && len(loc) >= 4 {
				m.value = model.SignalRevertToPrefix + lower[loc[2]:loc[3]]
			}
			found = append(found, m)
		}
	}

	kept := make([]match, 0, len(found))
	for i, m := range found {
		nested := false
		for j, other := range found {
			if i == j {
				continue
			}
			if other.start <= m.start && other.end >= m.end && (other.end-other.start) > (m.end-m.start) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, m)
		}
	}
	slices.SortStableFunc(kept, func(a, b match) int { return a.start - b.start })
	return kept
}

func toSignals(matches []match, seq int, source string) []model.Signal {
	signals := make([]model.Signal, 0, len(matches))
	for _, m := range matches {
		signals = append(signals, model.Signal{
			Kind:      model.SignalExplicit,
			Value:     m.value,
			Rationale: fmt.Sprintf("%s said %q", source, m.phrase),
			Seq:       seq,
		})
		seq++
	}
	return signals
}

// ProjectTextSignals returns explicit project signals found in author text, in
// reading order, numbered from seq.
func ProjectTextSignals(text string, seq int) []model.Signal {
	return toSignals(scan(text, projectTextPatterns), seq, "author")
}

// ThreadTextSignals returns explicit thread signals found in author text, in
// reading order, numbered from seq.
func ThreadTextSignals(text string, seq int) []model.Signal {
	return toSignals(scan(text, threadTextPatterns), seq, "author")
}

// LabelSignals maps tracker labels to explicit project and thread signals.
// Labels are numbered first, starting at 0, so text signals outrank them.
func LabelSignals(labels []string) (project, thread []model.Signal) {
	seq := 0
	sorted := append([]string(nil), labels...)
	slices.Sort(sorted)
	for _, raw := range sorted {
		label := strings.ToLower(strings.TrimSpace(raw))
		if value, ok := projectLabelSignals[label]; ok {
			project = append(project, model.Signal{Kind: model.SignalExplicit, Value: value, Rationale: "label " + label, Seq: seq})
			seq++
		}
		switch {
		case label == model.ThreadPhaseHold.Label():
			thread = append(thread, model.Signal{Kind: model.SignalExplicit, Value: model.SignalPause, Rationale: "label " + label, Seq: seq})
			seq++
		case slices.Contains(skipDiscoveryLabels, label):
			thread = append(thread, model.Signal{Kind: model.SignalExplicit, Value: model.SignalSkipDiscovery, Rationale: "label " + label, Seq: seq})
			seq++
		}
	}
	return project, thread
}

// ShouldSkipDiscovery reports whether a thread should open directly in FEEDBACK.
func ShouldSkipDiscovery(text string, labels []string) bool {
	for _, m := range scan(text, threadTextPatterns) {
		if m.value == model.SignalSkipDiscovery {
			return true
		}
	}
	for _, l := range labels {
		if slices.Contains(skipDiscoveryLabels, strings.ToLower(strings.TrimSpace(l))) {
			return true
		}
	}
	return false
}

// Thresholds configure the inferred DRAFTING -> REVISING transition. A zero
// field is not checked; both zero disables the inference.
type Thresholds struct {
	MinWords    int
	MinChapters int
}

func (t Thresholds) Enabled() bool {
	return t.MinWords > 0 || t.MinChapters > 0
}

func (t Thresholds) Crossed(words, chapters int) bool {
	if !t.Enabled() {
		return false
	}
	if t.MinWords > 0 && words < t.MinWords {
		return false
	}
	if t.MinChapters > 0 && chapters < t.MinChapters {
		return false
	}
	return true
}

// ContentSignals infers project signals from a fragment submission.
func ContentSignals(incorporated bool, words, chapters int, t Thresholds, seq int) []model.Signal {
	var signals []model.Signal
	if incorporated {
		signals = append(signals, model.Signal{
			Kind:      model.SignalInferred,
			Value:     model.SignalFragmentIncorporated,
			Rationale: "fragment incorporated into project content",
			Seq:       seq,
		})
		seq++
	}
	if t.Crossed(words, chapters) {
		signals = append(signals, model.Signal{
			Kind:      model.SignalInferred,
			Value:     model.SignalContentThreshold,
			Rationale: fmt.Sprintf("content reached %d words in %d chapters (thresholds %d/%d)", words, chapters, t.MinWords, t.MinChapters),
			Seq:       seq,
		})
	}
	return signals
}

// TurnSignals infers thread signals from the turn history. The author has
// answered discovery when the latest turn is a non-empty author turn that
// follows an editor turn containing a question.
func TurnSignals(turns []model.ConversationTurn, seq int) []model.Signal {
	if len(turns) < 2 {
		return nil
	}
	last, prev := turns[len(turns)-1], turns[len(turns)-2]
	if last.Role != model.RoleAuthor || strings.TrimSpace(last.Text) == "" {
		return nil
	}
	if prev.Role != model.RoleEditor || !strings.Contains(prev.Text, "?") {
		return nil
	}
	return []model.Signal{{
		Kind:      model.SignalInferred,
		Value:     model.SignalAnsweredDiscovery,
		Rationale: fmt.Sprintf("author turn %d answers editor questions in turn %d", last.Index, prev.Index),
		Seq:       seq,
	}}
}
