package identity

import (
	"strings"
	"time"
)

// Origin records whether an identity entry was set by the user or
// inferred by a reflection cycle. Manual entries are never downgraded.
type Origin string

const (
	OriginManual   Origin = "manual"
	OriginInferred Origin = "inferred"
)

// ParseOrigin maps free-form origin strings to a known Origin,
// defaulting to inferred.
func ParseOrigin(s string) Origin {
	if strings.EqualFold(strings.TrimSpace(s), string(OriginManual)) {
		return OriginManual
	}
	return OriginInferred
}

// Core is the manually curated heart of a persona. Reflection never
// touches it.
type Core struct {
	Identity  string   `json:"identity"`
	Beliefs   []string `json:"beliefs"`
	Backstory string   `json:"backstory"`
}

// Trait is a behavioral tendency with a strength in [0,1], where 0.5 is
// neutral. Names are unique case-insensitively.
type Trait struct {
	Name         string     `json:"name"`
	Strength     float64    `json:"strength"`
	Origin       Origin     `json:"origin"`
	LastEvidence string     `json:"last_evidence,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

// DreamEntry is one aspiration. Priority 1 is the highest; titles are
// unique within their list and appear in at most one list at a time.
type DreamEntry struct {
	Title        string     `json:"title"`
	Priority     int        `json:"priority"`
	Origin       Origin     `json:"origin"`
	LastMention  *time.Time `json:"last_mention,omitempty"`
	ProgressNote string     `json:"progress_note,omitempty"`
}

// Dreams splits aspirations into what the persona is pursuing now and
// what waits.
type Dreams struct {
	Active  []DreamEntry `json:"active"`
	Backlog []DreamEntry `json:"backlog"`
}

// State is the full persisted identity document. It is read and written
// whole; there are no partial updates.
type State struct {
	Core             Core       `json:"core"`
	Traits           []Trait    `json:"traits"`
	Dreams           Dreams     `json:"dreams"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	LastReflectionAt *time.Time `json:"last_reflection_at,omitempty"`
}

// DefaultState is the document created on first read when no identity
// file exists yet.
func DefaultState() *State {
	return &State{
		Core: Core{
			Identity:  "A thoughtful personal assistant that remembers what matters.",
			Beliefs:   []string{"Be genuinely useful, not performatively busy.", "Remember context so the user never has to repeat themselves."},
			Backstory: "",
		},
		Traits: nil,
		Dreams: Dreams{},
	}
}

// FindTrait returns the index of the trait with the given name,
// compared case-insensitively, or -1.
func (s *State) FindTrait(name string) int {
	for i, trait := range s.Traits {
		if strings.EqualFold(trait.Name, name) {
			return i
		}
	}
	return -1
}

// findDream returns the index of the entry with the given title,
// compared case-insensitively, or -1.
func findDream(list []DreamEntry, title string) int {
	for i, entry := range list {
		if strings.EqualFold(entry.Title, title) {
			return i
		}
	}
	return -1
}

// removeDream deletes the entry with the given title from the list,
// returning the removed entry and whether it was present.
func removeDream(list []DreamEntry, title string) ([]DreamEntry, DreamEntry, bool) {
	i := findDream(list, title)
	if i < 0 {
		return list, DreamEntry{}, false
	}
	removed := list[i]
	return append(list[:i], list[i+1:]...), removed, true
}
