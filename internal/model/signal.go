package model

import "strings"

type SignalKind string

const (
	SignalExplicit SignalKind = "explicit"
	SignalInferred SignalKind = "inferred"
)

// Signal is one observation fed to the phase classifier. Seq orders signals
// within a single event: labels first, then text in reading order.
type Signal struct {
	Kind      SignalKind `json:"kind"`
	Value     string     `json:"value"`
	Rationale string     `json:"rationale"`
	Seq       int        `json:"seq"`
}

func (s Signal) Explicit() bool {
	return s.Kind == SignalExplicit
}

// Project signal values.
const (
	SignalFragmentIncorporated = "fragment_incorporated"
	SignalReadyToRevise        = "ready_to_revise"
	SignalContentThreshold     = "content_threshold"
	SignalKeepDrafting         = "keep_drafting"
	SignalReadyToPolish        = "ready_to_polish"
	SignalProjectComplete      = "complete"
	SignalRevertToPrefix       = "revert_to:"
)

// Thread signal values.
const (
	SignalSkipDiscovery     = "skip_discovery"
	SignalAnsweredDiscovery = "answered_discovery"
	SignalIncorporating     = "incorporating"
	SignalPause             = "pause"
	SignalResume            = "resume"
	SignalClose             = "close"
)

// RevertTarget extracts the phase from a "revert_to:<phase>" value.
func RevertTarget(value string) (ProjectPhase, bool) {
	if !strings.HasPrefix(value, SignalRevertToPrefix) {
		return "", false
	}
	return ParseProjectPhase(strings.TrimPrefix(value, SignalRevertToPrefix))
}
