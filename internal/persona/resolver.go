package persona

import (
	"fmt"
	"slices"
	"strings"

	"basegraph.app/editorial/internal/model"
)

// Persona sources, highest priority first.
const (
	SourceCommand        = "command"
	SourceThreadOverride = "thread_override"
	SourceLabel          = "label"
	SourceEnv            = "env"
	SourceStored         = "stored_default"
	SourceSystem         = "system_default"
)

const (
	LabelPrefix = "persona:"

	MaxIntensityDelta = 10
)

// ResolveInput carries every competing persona signal for one call.
type ResolveInput struct {
	// Command is the raw text of the current author turn.
	Command        string
	ThreadOverride string
	ThreadLabels   []string
	EnvDefault     string
	StoredDefault  string
	IntensityDelta int
}

// Resolution is the outcome of persona resolution.
type Resolution struct {
	// Persona is the effective profile with the intensity delta applied to its traits.
	Persona   model.PersonaProfile
	PersonaID string
	Source    string
	// Persist is set by "use" and "switch to"; the caller stores PersonaID as the thread override.
	Persist bool
	// Request is the comment text with any persona command removed.
	Request        string
	IntensityDelta int
	IntensityNote  string
	ListRequested  bool
}

type Resolver struct {
	catalog *Catalog
	step    int
}

// NewResolver returns a resolver over catalog. step is the intensity change
// for a single "be harsher" or "be gentler".
func NewResolver(catalog *Catalog, step int) *Resolver {
	return &Resolver{catalog: catalog, step: step}
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Resolve picks exactly one persona and the thread's intensity delta.
//
// Every non-empty persona id from any source must exist in the catalog, even
// when a higher priority source wins. An unknown id is an UnknownPersonaError.
func (r *Resolver) Resolve(in ResolveInput) (Resolution, error) {
	cmd := ParseCommand(in.Command)
	if cmd.Type == CommandUse || cmd.Type == CommandAs {
		// A bare "use X" or "as X" without an @mention is only a command when X
		// is a real persona, so "As I said" stays prose. Explicit forms with an
		// unknown id fail below.
		if !cmd.Mentioned && !cmd.Explicit && !r.catalog.Has(cmd.PersonaID) {
			cmd = Command{Type: CommandNone, Remaining: in.Command}
		}
	}

	type candidate struct {
		id     string
		source string
	}
	candidates := []candidate{
		{cmd.PersonaID, SourceCommand},
		{strings.TrimSpace(in.ThreadOverride), SourceThreadOverride},
	}
	for _, id := range labelPersonas(in.ThreadLabels) {
		candidates = append(candidates, candidate{id, SourceLabel})
	}
	candidates = append(candidates,
		candidate{strings.TrimSpace(in.EnvDefault), SourceEnv},
		candidate{strings.TrimSpace(in.StoredDefault), SourceStored},
		candidate{SystemDefault, SourceSystem},
	)

	res := Resolution{Request: cmd.Remaining, ListRequested: cmd.Type == CommandList}
	for _, c := range candidates {
		if c.id == "" {
			continue
		}
		p, err := r.catalog.Lookup(c.id, c.source)
		if err != nil {
			return Resolution{}, err
		}
		if res.PersonaID == "" {
			res.Persona, res.PersonaID, res.Source = p, c.id, c.source
		}
	}
	res.Persist = cmd.Type == CommandUse

	res.IntensityDelta, res.IntensityNote = r.applyIntensity(in.IntensityDelta, cmd.Remaining)
	res.Persona.Traits = res.Persona.Traits.Shifted(res.IntensityDelta)
	return res, nil
}

// applyIntensity applies the last modifier in text order. When a turn contains
// both harsher and gentler requests only the last one counts, and the note says so.
func (r *Resolver) applyIntensity(current int, text string) (int, string) {
	ops := ParseIntensity(text)
	if len(ops) == 0 {
		return clampDelta(current), ""
	}

	last := ops[len(ops)-1]
	var note string
	if len(ops) > 1 && slices.ContainsFunc(ops, func(op IntensityOp) bool { return op != last }) {
		note = fmt.Sprintf("conflicting intensity modifiers in one comment; the last one (%s) was applied", last)
	}

	switch last {
	case IntensityReset:
		return 0, note
	default:
		return clampDelta(current + int(last)*r.step), note
	}
}

func clampDelta(v int) int {
	return min(max(v, -MaxIntensityDelta), MaxIntensityDelta)
}

func (op IntensityOp) String() string {
	switch op {
	case IntensityHarsher:
		return "harsher"
	case IntensityGentler:
		return "gentler"
	}
	return "reset"
}

// labelPersonas returns the ids of all "persona:<id>" labels, sorted, so the
// winner is the same whatever order the tracker lists labels in.
func labelPersonas(labels []string) []string {
	var ids []string
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if !strings.HasPrefix(l, LabelPrefix) {
			continue
		}
		if id := strings.TrimSpace(strings.TrimPrefix(l, LabelPrefix)); id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
