package persona

import (
	"regexp"
	"slices"
	"strings"
)

type CommandType string

const (
	CommandNone CommandType = ""
	CommandUse  CommandType = "use"
	CommandAs   CommandType = "as"
	CommandList CommandType = "list"
)

// Command is a persona command at the start of a comment.
type Command struct {
	Type      CommandType
	PersonaID string
	// Remaining is the text after the command, or the whole text when there is none.
	Remaining string
	// Mentioned is true when the command followed an @mention.
	Mentioned bool
	// Explicit is true for forms prose never takes: "switch to X", "use X:" and "as X:".
	Explicit bool
}

var (
	mentionRe = regexp.MustCompile(`^\s*@[\w.-]+\s*`)
	useRe     = regexp.MustCompile(`(?is)^(use|switch\s+to)\s+([a-z0-9][a-z0-9-]*)\b[\s,.:]*(.*)$`)
	asRe      = regexp.MustCompile(`(?is)^as\s+([a-z0-9][a-z0-9-]*)\s*(?::\s*(.*)|$|\s+(.*))$`)
	colonRe   = regexp.MustCompile(`(?is)^(?:use|as)\s+[a-z0-9][a-z0-9-]*\s*:`)
	listRe    = regexp.MustCompile(`(?is)^list\s+personas\b\s*(.*)$`)
)

// ParseCommand recognizes "use X", "switch to X", "as X[: request]" and
// "list personas" at the start of text, optionally after an @mention.
func ParseCommand(text string) Command {
	rest := text
	mentioned := false
	if loc := mentionRe.FindStringIndex(rest); loc != nil {
		rest = rest[loc[1]:]
		mentioned = true
	}
	rest = strings.TrimSpace(rest)

	if m := listRe.FindStringSubmatch(rest); m != nil {
		return Command{Type: CommandList, Remaining: strings.TrimSpace(m[1]), Mentioned: mentioned}
	}
	if m := useRe.FindStringSubmatch(rest); m != nil {
		return Command{
			Type:      CommandUse,
			PersonaID: strings.ToLower(m[2]),
			Remaining: strings.TrimSpace(m[3]),
			Mentioned: mentioned,
			Explicit:  !strings.EqualFold(m[1], "use") || colonRe.MatchString(rest),
		}
	}
	if m := asRe.FindStringSubmatch(rest); m != nil {
		remaining := m[2]
		if remaining == "" {
			remaining = m[3]
		}
		return Command{
			Type:      CommandAs,
			PersonaID: strings.ToLower(m[1]),
			Remaining: strings.TrimSpace(remaining),
			Mentioned: mentioned,
			Explicit:  colonRe.MatchString(rest),
		}
	}
	return Command{Type: CommandNone, Remaining: text, Mentioned: mentioned}
}

// IntensityOp is one intensity modifier found in text.
type IntensityOp int

const (
	IntensityGentler IntensityOp = -1
	IntensityReset   IntensityOp = 0
	IntensityHarsher IntensityOp = 1
)

var (
	harsherRe = regexp.MustCompile(`(?i)\b(?:be\s+|go\s+)?(?:harsher|tougher|blunter|more\s+(?:brutal|ruthless|critical|harsh))\b`)
	gentlerRe = regexp.MustCompile(`(?i)\b(?:be\s+|go\s+)?(?:gentler|softer|kinder|more\s+gentle|less\s+(?:harsh|brutal|ruthless)|easier\s+on\s+me)\b`)
	resetRe   = regexp.MustCompile(`(?i)\b(?:reset\s+(?:the\s+)?intensity|normal\s+intensity)\b`)
)

type intensityMatch struct {
	op  IntensityOp
	pos int
}

// ParseIntensity returns intensity modifiers in text order.
func ParseIntensity(text string) []IntensityOp {
	var found []intensityMatch
	for _, spec := range []struct {
		op IntensityOp
		re *regexp.Regexp
	}{
		{IntensityHarsher, harsherRe},
		{IntensityGentler, gentlerRe},
		{IntensityReset, resetRe},
	} {
		for _, loc := range spec.re.FindAllStringIndex(text, -1) {
			found = append(found, intensityMatch{op: spec.op, pos: loc[0]})
		}
	}

	slices.SortStableFunc(found, func(a, b intensityMatch) int { return a.pos - b.pos })

	ops := make([]IntensityOp, 0, len(found))
	for _, m := range found {
		ops = append(ops, m.op)
	}
	return ops
}
