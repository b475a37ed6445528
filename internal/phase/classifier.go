package phase

import (
	"slices"
	"time"

	"basegraph.app/editorial/internal/model"
)

// ProjectInput is everything ClassifyProject looks at. Previous may be nil for
// a project that was never classified.
type ProjectInput struct {
	ProjectID string
	Previous  *model.ProjectPhaseState
	Signals   []model.Signal
	Now       time.Time
}

// ClassifyProject applies one event's signals to the project phase.
//
// Explicit signals outrank inferred ones: when any recognized explicit signal is
// present only the one with the highest Seq is applied and inferred signals are
// recorded but ignored. Forward signals never move the phase backward; only
// revert_to:<phase> can. Every signal leaves a PhaseEvidence entry, except a
// signal that changed nothing and is already on record.
func ClassifyProject(in ProjectInput) model.ProjectPhaseState {
	state := baseProjectState(in)

	signals := sortedSignals(in.Signals)
	winner := -1
	for i, s := range signals {
		if s.Explicit() && knownProjectSignal(s.Value) {
			winner = i
		}
	}

	for i, s := range signals {
		from := state.Phase
		switch {
		case !knownProjectSignal(s.Value):
			state.record(s, from, false, "unknown signal ignored", in.Now)
		case winner >= 0 && i != winner && !s.Explicit():
			state.record(s, from, false, "inferred signal outranked by explicit signal", in.Now)
		case winner >= 0 && i != winner:
			state.record(s, from, false, "superseded by a later explicit signal", in.Now)
		case requiresExplicit(s.Value) && !s.Explicit():
			state.record(s, from, false, "transition requires an explicit signal", in.Now)
		default:
			applied, note := state.apply(s)
			if state.Phase != from {
				state.EnteredAt = in.Now
			}
			state.record(s, from, applied, note, in.Now)
		}
	}
	return state.ProjectPhaseState
}

type projectState struct {
	model.ProjectPhaseState
}

func baseProjectState(in ProjectInput) *projectState {
	prev := in.Previous
	if prev != nil && prev.Valid() {
		st := *prev
		st.Evidence = slices.Clone(prev.Evidence)
		return &projectState{st}
	}

	st := model.ProjectPhaseState{
		ProjectID: in.ProjectID,
		Phase:     model.ProjectPhaseNew,
		EnteredAt: in.Now,
	}
	if prev != nil {
		// Keep the stored version so the reset can still be saved with CAS.
		st.Version = prev.Version
		st.Evidence = append(slices.Clone(prev.Evidence), model.PhaseEvidence{
			From: string(prev.Phase),
			To:   string(model.ProjectPhaseNew),
			Note: "previous state malformed, reset to new",
			At:   in.Now,
		})
	}
	return &projectState{st}
}

func (s *projectState) record(sig model.Signal, from model.ProjectPhase, applied bool, note string, at time.Time) {
	s.Evidence = appendEvidence(s.Evidence, model.PhaseEvidence{
		Signal:  sig,
		From:    string(from),
		To:      string(s.Phase),
		Applied: applied,
		Note:    note,
		At:      at,
	})
}

func (s *projectState) forward(to model.ProjectPhase) (bool, string) {
	if s.Phase.Rank() >= to.Rank() {
		return false, "already at or past " + string(to)
	}
	s.Phase = to
	return true, ""
}

func (s *projectState) apply(sig model.Signal) (bool, string) {
	switch sig.Value {
	case model.SignalFragmentIncorporated:
		if s.Phase != model.ProjectPhaseNew {
			return false, "project already past new"
		}
		s.Phase = model.ProjectPhaseDrafting
		return true, ""
	case model.SignalContentThreshold:
		if s.Phase != model.ProjectPhaseDrafting {
			return false, "content threshold only moves drafting projects"
		}
		if s.Pinned {
			return false, "pinned in drafting by keep_drafting"
		}
		s.Phase = model.ProjectPhaseRevising
		return true, ""
	case model.SignalReadyToRevise:
		s.Pinned = false
		return s.forward(model.ProjectPhaseRevising)
	case model.SignalKeepDrafting:
		if s.Phase.Rank() > model.ProjectPhaseDrafting.Rank() {
			return false, "keep_drafting cannot move a project back; use revert_to:drafting"
		}
		if s.Pinned {
			return false, "already pinned in drafting"
		}
		s.Pinned = true
		return true, "pinned in drafting"
	case model.SignalReadyToPolish:
		return s.forward(model.ProjectPhasePolishing)
	case model.SignalProjectComplete:
		return s.forward(model.ProjectPhaseComplete)
	}

	target, ok := model.RevertTarget(sig.Value)
	if !ok {
		return false, "unknown signal ignored"
	}
	if target.Rank() >= s.Phase.Rank() {
		return false, "revert target is not behind " + string(s.Phase)
	}
	s.Phase = target
	return true, "explicit revert"
}

func knownProjectSignal(value string) bool {
	switch value {
	case model.SignalFragmentIncorporated, model.SignalContentThreshold, model.SignalReadyToRevise,
		model.SignalKeepDrafting, model.SignalReadyToPolish, model.SignalProjectComplete:
		return true
	}
	_, ok := model.RevertTarget(value)
	return ok
}

func requiresExplicit(value string) bool {
	switch value {
	case model.SignalFragmentIncorporated, model.SignalContentThreshold:
		return false
	}
	return true
}

// ThreadInput is everything ClassifyThread looks at besides the previous state.
type ThreadInput struct {
	ThreadID  string
	ProjectID string
	Signals   []model.Signal
	Turns     []model.ConversationTurn
	Now       time.Time
}

// ClassifyThread applies one event to the thread phase. A nil previous state
// creates the thread. Inferred signals are derived from the turns.
//
// A COMPLETE thread rejects any new turn or transition signal with
// InvalidPhaseTransitionError and is otherwise returned unchanged.
func ClassifyThread(in ThreadInput, prev *model.ThreadPhaseState) (model.ThreadPhaseState, error) {
	if prev != nil && prev.Valid() && prev.Phase.Terminal() {
		return terminalThread(in, prev)
	}

	state, creating := baseThreadState(in, prev)

	signals := sortedSignals(in.Signals)
	nextSeq := 0
	if len(signals) > 0 {
		nextSeq = signals[len(signals)-1].Seq + 1
	}
	signals = append(signals, TurnSignals(in.Turns, nextSeq)...)

	winner := -1
	for i, s := range signals {
		if s.Explicit() && transitionSignal(s.Value) {
			winner = i
		}
	}

	for i, s := range signals {
		from := state.Phase
		switch {
		case s.Value == model.SignalSkipDiscovery:
			if creating {
				state.record(s, from, false, "skip discovery applied at creation", in.Now)
			} else {
				state.record(s, from, false, "skip discovery only applies when a thread opens", in.Now)
			}
		case !transitionSignal(s.Value):
			state.record(s, from, false, "unknown signal ignored", in.Now)
		case winner >= 0 && i != winner && !s.Explicit():
			state.record(s, from, false, "inferred signal outranked by explicit signal", in.Now)
		case winner >= 0 && i != winner:
			state.record(s, from, false, "superseded by a later explicit signal", in.Now)
		default:
			applied, note := state.apply(s)
			state.record(s, from, applied, note, in.Now)
		}
	}

	state.TurnCount = max(state.TurnCount, len(in.Turns))
	state.UpdatedAt = in.Now
	return state.ThreadPhaseState, nil
}

type threadState struct {
	model.ThreadPhaseState
}

func baseThreadState(in ThreadInput, prev *model.ThreadPhaseState) (*threadState, bool) {
	if prev != nil && prev.Valid() {
		st := *prev
		st.Evidence = slices.Clone(prev.Evidence)
		st.OpenQuestions = slices.Clone(prev.OpenQuestions)
		return &threadState{st}, false
	}

	st := model.ThreadPhaseState{
		ThreadID:  in.ThreadID,
		ProjectID: in.ProjectID,
		Phase:     model.ThreadPhaseDiscovery,
	}
	if prev != nil {
		st.Version = prev.Version
		st.TurnCount = prev.TurnCount
		st.PersonaOverride = prev.PersonaOverride
		st.IntensityDelta = prev.IntensityDelta
		st.Evidence = append(slices.Clone(prev.Evidence), model.PhaseEvidence{
			From: string(prev.Phase),
			To:   string(model.ThreadPhaseDiscovery),
			Note: "previous state malformed, reset to discovery",
			At:   in.Now,
		})
		return &threadState{st}, false
	}

	for _, s := range in.Signals {
		if s.Value == model.SignalSkipDiscovery {
			st.Phase = model.ThreadPhaseFeedback
			break
		}
	}
	return &threadState{st}, true
}

func terminalThread(in ThreadInput, prev *model.ThreadPhaseState) (model.ThreadPhaseState, error) {
	if len(in.Turns) > prev.TurnCount {
		return model.ThreadPhaseState{}, &model.InvalidPhaseTransitionError{
			ThreadID:  prev.ThreadID,
			From:      prev.Phase,
			Attempted: "new turn",
		}
	}
	for _, s := range in.Signals {
		if transitionSignal(s.Value) && s.Value != model.SignalClose {
			return model.ThreadPhaseState{}, &model.InvalidPhaseTransitionError{
				ThreadID:  prev.ThreadID,
				From:      prev.Phase,
				Attempted: s.Value,
			}
		}
	}
	st := *prev
	return st, nil
}

func (s *threadState) record(sig model.Signal, from model.ThreadPhase, applied bool, note string, at time.Time) {
	s.Evidence = appendEvidence(s.Evidence, model.PhaseEvidence{
		Signal:  sig,
		From:    string(from),
		To:      string(s.Phase),
		Applied: applied,
		Note:    note,
		At:      at,
	})
}

func (s *threadState) apply(sig model.Signal) (bool, string) {
	switch sig.Value {
	case model.SignalAnsweredDiscovery:
		if s.Phase != model.ThreadPhaseDiscovery {
			return false, "not in discovery"
		}
		s.Phase = model.ThreadPhaseFeedback
		return true, ""
	case model.SignalIncorporating:
		if s.Phase != model.ThreadPhaseFeedback {
			return false, "incorporating only moves a thread out of feedback"
		}
		s.Phase = model.ThreadPhaseRevision
		return true, ""
	case model.SignalPause:
		if s.Phase == model.ThreadPhaseHold {
			return false, "already on hold"
		}
		s.PreviousPhase = s.Phase
		s.Phase = model.ThreadPhaseHold
		return true, ""
	case model.SignalResume:
		if s.Phase != model.ThreadPhaseHold {
			return false, "not on hold"
		}
		back := s.PreviousPhase
		if !back.Valid() || back == model.ThreadPhaseHold || back.Terminal() {
			back = model.ThreadPhaseDiscovery
		}
		s.Phase = back
		s.PreviousPhase = ""
		return true, ""
	case model.SignalClose:
		s.Phase = model.ThreadPhaseComplete
		return true, "thread closed"
	}
	return false, "unknown signal ignored"
}

func transitionSignal(value string) bool {
	switch value {
	case model.SignalAnsweredDiscovery, model.SignalIncorporating, model.SignalPause,
		model.SignalResume, model.SignalClose:
		return true
	}
	return false
}

func sortedSignals(signals []model.Signal) []model.Signal {
	out := slices.Clone(signals)
	slices.SortStableFunc(out, func(a, b model.Signal) int { return a.Seq - b.Seq })
	return out
}

// appendEvidence drops a signal that changed nothing when the same signal is
// already on record. Labels and stale text are re-read on every event.
func appendEvidence(evidence []model.PhaseEvidence, e model.PhaseEvidence) []model.PhaseEvidence {
	if !e.Applied && slices.ContainsFunc(evidence, func(prev model.PhaseEvidence) bool {
		return sameSignal(prev.Signal, e.Signal)
	}) {
		return evidence
	}
	return append(evidence, e)
}

func sameSignal(a, b model.Signal) bool {
	return a.Kind == b.Kind && a.Value == b.Value && a.Rationale == b.Rationale
}
