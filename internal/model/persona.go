package model

// Trait names, in the order they are rendered.
const (
	TraitDirectness      = "directness"
	TraitRuthlessness    = "ruthlessness"
	TraitVoiceProtection = "voice_protection"
	TraitStructureFocus  = "structure_focus"
	TraitMarketAwareness = "market_awareness"
	TraitPraiseFrequency = "praise_frequency"
	TraitFormality       = "formality"
	TraitChallengeLevel  = "challenge_level"
	TraitSpecificity     = "specificity"
)

const (
	TraitMin = 0
	TraitMax = 10
)

// TraitNames returns the nine trait names in rendering order.
func TraitNames() []string {
	return []string{
		TraitDirectness,
		TraitRuthlessness,
		TraitVoiceProtection,
		TraitStructureFocus,
		TraitMarketAwareness,
		TraitPraiseFrequency,
		TraitFormality,
		TraitChallengeLevel,
		TraitSpecificity,
	}
}

// Traits is the nine-scalar personality vector, each in [0, 10].
type Traits struct {
	Directness      int `yaml:"directness" json:"directness"`
	Ruthlessness    int `yaml:"ruthlessness" json:"ruthlessness"`
	VoiceProtection int `yaml:"voice_protection" json:"voice_protection"`
	StructureFocus  int `yaml:"structure_focus" json:"structure_focus"`
	MarketAwareness int `yaml:"market_awareness" json:"market_awareness"`
	PraiseFrequency int `yaml:"praise_frequency" json:"praise_frequency"`
	Formality       int `yaml:"formality" json:"formality"`
	ChallengeLevel  int `yaml:"challenge_level" json:"challenge_level"`
	Specificity     int `yaml:"specificity" json:"specificity"`
}

// Get returns a trait by name. Unknown names report false.
func (t Traits) Get(name string) (int, bool) {
	switch name {
	case TraitDirectness:
		return t.Directness, true
	case TraitRuthlessness:
		return t.Ruthlessness, true
	case TraitVoiceProtection:
		return t.VoiceProtection, true
	case TraitStructureFocus:
		return t.StructureFocus, true
	case TraitMarketAwareness:
		return t.MarketAwareness, true
	case TraitPraiseFrequency:
		return t.PraiseFrequency, true
	case TraitFormality:
		return t.Formality, true
	case TraitChallengeLevel:
		return t.ChallengeLevel, true
	case TraitSpecificity:
		return t.Specificity, true
	}
	return 0, false
}

// Shifted returns a copy with ruthlessness and challenge level moved by delta,
// clamped to [TraitMin, TraitMax].
func (t Traits) Shifted(delta int) Traits {
	t.Ruthlessness = clampTrait(t.Ruthlessness + delta)
	t.ChallengeLevel = clampTrait(t.ChallengeLevel + delta)
	return t
}

func clampTrait(v int) int {
	return min(max(v, TraitMin), TraitMax)
}

type PersonaRules struct {
	Always []string `yaml:"always" json:"always"`
	Never  []string `yaml:"never" json:"never"`
}

type PersonaVoice struct {
	Tone    string   `yaml:"tone" json:"tone"`
	Phrases []string `yaml:"phrases" json:"phrases"`
	Avoids  []string `yaml:"avoids" json:"avoids"`
}

// PersonaDiscovery drives the questions an editor asks before giving feedback.
type PersonaDiscovery struct {
	Philosophy        string   `yaml:"philosophy" json:"philosophy"`
	IntakeQuestions   []string `yaml:"intake_questions" json:"intake_questions"`
	IntentQuestions   []string `yaml:"intent_questions" json:"intent_questions"`
	SocraticQuestions []string `yaml:"socratic_questions" json:"socratic_questions"`
}

// PersonaProfile is an immutable catalog entry.
type PersonaProfile struct {
	ID             string           `yaml:"id" json:"id"`
	Name           string           `yaml:"name" json:"name"`
	Tagline        string           `yaml:"tagline" json:"tagline"`
	Description    string           `yaml:"description" json:"description"`
	Traits         Traits           `yaml:"traits" json:"traits"`
	Rules          PersonaRules     `yaml:"rules" json:"rules"`
	Voice          PersonaVoice     `yaml:"voice" json:"voice"`
	SampleFeedback []string         `yaml:"sample_feedback" json:"sample_feedback"`
	Discovery      PersonaDiscovery `yaml:"discovery" json:"discovery"`
}
