package battle

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed roster.yaml
var embeddedRoster []byte

type Persona struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Tagline string `yaml:"tagline" json:"tagline"`
	Brief   string `yaml:"brief" json:"-"`
}

type Intensity struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// TimeLimit is offered in every mode unless Modes narrows it.
type TimeLimit struct {
	ID      string `yaml:"id" json:"id"`
	Seconds int    `yaml:"seconds" json:"seconds"`
	Label   string `yaml:"label" json:"label"`
	Modes   []Mode `yaml:"modes,omitempty" json:"modes,omitempty"`
}

func (l TimeLimit) offeredIn(mode Mode) bool {
	if len(l.Modes) == 0 {
		return true
	}
	for _, m := range l.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

type Vibe struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type Agent struct {
	AgentID  string `yaml:"agent_id" json:"-"`
	KeyGroup string `yaml:"key_group" json:"-"`
}

// Roster holds the selectable battle tables.
type Roster struct {
	DefaultTimeLimit      int              `yaml:"default_time_limit" json:"default_time_limit"`
	ModeDefaultTimeLimits map[Mode]int     `yaml:"mode_default_time_limits" json:"mode_default_time_limits,omitempty"`
	Personas              []Persona        `yaml:"personas" json:"personas"`
	Intensities           []Intensity      `yaml:"intensities" json:"intensities"`
	TimeLimits            []TimeLimit      `yaml:"time_limits" json:"time_limits"`
	Vibes                 []Vibe           `yaml:"vibes" json:"vibes"`
	Agents                map[string]Agent `yaml:"agents" json:"-"`
}

// LoadRoster reads a roster file, or the built-in one when path is empty.
func LoadRoster(path string) (*Roster, error) {
	if strings.TrimSpace(path) == "" {
		return ParseRoster(embeddedRoster)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(raw)
}

func DefaultRoster() *Roster {
	roster, err := ParseRoster(embeddedRoster)
	if err != nil {
		panic(fmt.Sprintf("embedded roster is invalid: %v", err))
	}
	return roster
}

func ParseRoster(raw []byte) (*Roster, error) {
	var roster Roster
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if err := roster.validate(); err != nil {
		return nil, err
	}
	for idx := range roster.Personas {
		roster.Personas[idx].Brief = strings.TrimSpace(roster.Personas[idx].Brief)
	}
	return &roster, nil
}

func (r *Roster) validate() error {
	if len(r.Personas) == 0 {
		return fmt.Errorf("roster: no personas")
	}
	if len(r.Intensities) == 0 {
		return fmt.Errorf("roster: no intensities")
	}
	if len(r.TimeLimits) == 0 {
		return fmt.Errorf("roster: no time limits")
	}
	seen := map[string]struct{}{}
	for _, persona := range r.Personas {
		if strings.TrimSpace(persona.ID) == "" || strings.TrimSpace(persona.Name) == "" {
			return fmt.Errorf("roster: persona requires id and name")
		}
		if _, dup := seen[persona.ID]; dup {
			return fmt.Errorf("roster: duplicate persona %q", persona.ID)
		}
		seen[persona.ID] = struct{}{}
	}
	for _, limit := range r.TimeLimits {
		if limit.Seconds <= 0 {
			return fmt.Errorf("roster: time limit %q must be positive", limit.ID)
		}
		for _, mode := range limit.Modes {
			if !mode.Valid() {
				return fmt.Errorf("roster: time limit %q names unknown mode %q", limit.ID, mode)
			}
		}
	}
	if r.DefaultTimeLimit <= 0 {
		r.DefaultTimeLimit = r.TimeLimits[0].Seconds
	}
	for mode, seconds := range r.ModeDefaultTimeLimits {
		if !mode.Valid() {
			return fmt.Errorf("roster: default time limit for unknown mode %q", mode)
		}
		if !r.AllowsTimeLimit(mode, seconds) {
			return fmt.Errorf("roster: default time limit %ds is not offered in %s", seconds, mode)
		}
	}
	return nil
}

func (r *Roster) Persona(id string) (Persona, bool) {
	for _, persona := range r.Personas {
		if persona.ID == id {
			return persona, true
		}
	}
	return Persona{}, false
}

func (r *Roster) Intensity(id string) (Intensity, bool) {
	for _, intensity := range r.Intensities {
		if intensity.ID == id {
			return intensity, true
		}
	}
	return Intensity{}, false
}

func (r *Roster) Vibe(id string) (Vibe, bool) {
	for _, vibe := range r.Vibes {
		if vibe.ID == id {
			return vibe, true
		}
	}
	return Vibe{}, false
}

func (r *Roster) AllowsTimeLimit(mode Mode, seconds int) bool {
	for _, limit := range r.TimeLimits {
		if limit.Seconds == seconds && limit.offeredIn(mode) {
			return true
		}
	}
	return false
}

// TimeLimitFor is the limit a battle in mode gets when none was picked.
func (r *Roster) TimeLimitFor(mode Mode) int {
	if seconds, ok := r.ModeDefaultTimeLimits[mode]; ok {
		return seconds
	}
	return r.DefaultTimeLimit
}

// Agent resolves the hosted agent for a persona at an intensity.
func (r *Roster) Agent(personaID, intensityID string) (Agent, bool) {
	agent, ok := r.Agents[personaID+"_"+intensityID]
	if !ok || strings.TrimSpace(agent.AgentID) == "" {
		return Agent{}, false
	}
	return agent, true
}
