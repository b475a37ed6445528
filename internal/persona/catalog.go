package persona

import (
	"bytes"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"basegraph.app/editorial/internal/model"
)

// SystemDefault is used when no other source names a persona.
const SystemDefault = "margot"

//go:embed personas.yaml
var embeddedCatalog []byte

// Catalog is the immutable set of personas, keyed by id.
type Catalog struct {
	profiles map[string]model.PersonaProfile
	order    []string
}

type catalogFile struct {
	Personas []model.PersonaProfile `yaml:"personas"`
}

// DefaultCatalog parses the embedded persona catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// ParseCatalog decodes and validates a catalog document. Unknown fields are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding persona catalog: %w", err)
	}
	if len(file.Personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}

	c := &Catalog{profiles: make(map[string]model.PersonaProfile, len(file.Personas))}
	for _, p := range file.Personas {
		if err := validateProfile(p); err != nil {
			return nil, err
		}
		if _, dup := c.profiles[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		c.profiles[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

func validateProfile(p model.PersonaProfile) error {
	if p.ID == "" || strings.ToLower(p.ID) != p.ID || strings.ContainsAny(p.ID, " \t:") {
		return fmt.Errorf("invalid persona id %q", p.ID)
	}
	if p.Name == "" {
		return fmt.Errorf("persona %q has no name", p.ID)
	}
	for _, name := range model.TraitNames() {
		v, _ := p.Traits.Get(name)
		if v < model.TraitMin || v > model.TraitMax {
			return fmt.Errorf("persona %q trait %s=%d out of range", p.ID, name, v)
		}
	}
	return nil
}

func (c *Catalog) Get(id string) (model.PersonaProfile, bool) {
	p, ok := c.profiles[id]
	return p, ok
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.profiles[id]
	return ok
}

// IDs returns every persona id, sorted.
func (c *Catalog) IDs() []string {
	ids := slices.Clone(c.order)
	slices.Sort(ids)
	return ids
}

// All returns profiles in catalog order.
func (c *Catalog) All() []model.PersonaProfile {
	out := make([]model.PersonaProfile, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.profiles[id])
	}
	return out
}

// Lookup returns the profile or an UnknownPersonaError naming the source.
func (c *Catalog) Lookup(id, source string) (model.PersonaProfile, error) {
	p, ok := c.profiles[id]
	if !ok {
		return model.PersonaProfile{}, &model.UnknownPersonaError{ID: id, Source: source, Valid: c.IDs()}
	}
	return p, nil
}
