package battle

import (
	"fmt"
	"strings"

	"roastbattle/backend/internal/common"
)

const maxProfileDescriptionRunes = 200

// Config is what a client picks on the setup screen.
type Config struct {
	Mode             Mode     `json:"mode"`
	PersonaA         string   `json:"persona_a,omitempty"`
	PersonaB         string   `json:"persona_b"`
	Intensity        string   `json:"intensity"`
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty"`
	HumanProfile     *Profile `json:"human_profile,omitempty"`
}

// Limits are server-side battle rules, not chosen by clients.
type Limits struct {
	MaxMessagesPerParticipant int
	MinMessageLen             int
	MaxMessageLen             int
}

func DefaultLimits() Limits {
	return Limits{MaxMessagesPerParticipant: 3, MinMessageLen: 1, MaxMessageLen: 500}
}

func (l Limits) normalized() Limits {
	defaults := DefaultLimits()
	if l.MaxMessagesPerParticipant <= 0 {
		l.MaxMessagesPerParticipant = defaults.MaxMessagesPerParticipant
	}
	if l.MinMessageLen <= 0 {
		l.MinMessageLen = defaults.MinMessageLen
	}
	if l.MaxMessageLen <= 0 {
		l.MaxMessageLen = defaults.MaxMessageLen
	}
	return l
}

// resolve validates cfg against the roster and builds both participants.
func (r *Roster) resolve(cfg Config) (Participant, Participant, int, error) {
	if !cfg.Mode.Valid() {
		return Participant{}, Participant{}, 0, fmt.Errorf("%w: mode must be human_vs_ai or ai_vs_ai", ErrInvalidConfig)
	}
	if _, ok := r.Intensity(cfg.Intensity); !ok {
		return Participant{}, Participant{}, 0, fmt.Errorf("%w: %q", ErrUnknownIntensity, cfg.Intensity)
	}

	timeLimit := cfg.TimeLimitSeconds
	if timeLimit == 0 {
		timeLimit = r.TimeLimitFor(cfg.Mode)
	}
	if !r.AllowsTimeLimit(cfg.Mode, timeLimit) {
		return Participant{}, Participant{}, 0, fmt.Errorf("%w: time limit %ds is not offered in %s", ErrInvalidConfig, timeLimit, cfg.Mode)
	}

	personaB, ok := r.Persona(cfg.PersonaB)
	if !ok {
		return Participant{}, Participant{}, 0, fmt.Errorf("%w: %q", ErrUnknownPersona, cfg.PersonaB)
	}
	b := aiParticipant(AIBParticipantID, personaB)

	if cfg.Mode == ModeAIVsAI {
		if cfg.HumanProfile != nil {
			return Participant{}, Participant{}, 0, fmt.Errorf("%w: human profile only applies to human_vs_ai", ErrInvalidConfig)
		}
		personaA, ok := r.Persona(cfg.PersonaA)
		if !ok {
			return Participant{}, Participant{}, 0, fmt.Errorf("%w: %q", ErrUnknownPersona, cfg.PersonaA)
		}
		if personaA.ID == personaB.ID {
			return Participant{}, Participant{}, 0, fmt.Errorf("%w: persona %q cannot battle itself", ErrInvalidConfig, personaA.ID)
		}
		return aiParticipant(AIAParticipantID, personaA), b, timeLimit, nil
	}

	profile, err := r.normalizeProfile(cfg.HumanProfile)
	if err != nil {
		return Participant{}, Participant{}, 0, err
	}
	human := Participant{
		ID:      HumanParticipantID,
		Name:    "You",
		Role:    RoleHuman,
		Profile: profile,
		Brief:   humanBrief(profile),
	}
	return human, b, timeLimit, nil
}

func aiParticipant(id string, persona Persona) Participant {
	return Participant{
		ID:        id,
		Name:      persona.Name,
		Role:      RoleAI,
		PersonaID: persona.ID,
		Brief:     persona.Brief,
	}
}

func (r *Roster) normalizeProfile(profile *Profile) (*Profile, error) {
	if profile == nil {
		return nil, nil
	}
	out := &Profile{Description: common.TruncateRunes(profile.Description, maxProfileDescriptionRunes)}
	seen := map[string]struct{}{}
	for _, id := range profile.Vibes {
		clean := strings.TrimSpace(id)
		if _, dup := seen[clean]; dup || clean == "" {
			continue
		}
		vibe, ok := r.Vibe(clean)
		if !ok {
			return nil, fmt.Errorf("%w: unknown vibe %q", ErrInvalidConfig, clean)
		}
		seen[clean] = struct{}{}
		out.Vibes = append(out.Vibes, vibe.Label)
	}
	if out.Description == "" && len(out.Vibes) == 0 {
		return nil, nil
	}
	return out, nil
}

func humanBrief(profile *Profile) string {
	if profile == nil {
		return "You're up against a human challenger who thinks they can out-roast you."
	}
	var sb strings.Builder
	sb.WriteString("You're up against a human challenger.")
	if profile.Description != "" {
		sb.WriteString(" They describe themselves as: ")
		sb.WriteString(profile.Description)
		if !strings.HasSuffix(profile.Description, ".") {
			sb.WriteString(".")
		}
	}
	if len(profile.Vibes) > 0 {
		sb.WriteString(" Their vibe: ")
		sb.WriteString(strings.Join(profile.Vibes, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}
