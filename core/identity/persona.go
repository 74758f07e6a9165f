package identity

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPersonaPrompt renders the identity document into the
// system-prompt block injected ahead of every conversation. Traits are
// listed strongest first; only notably strong or weak tendencies are
// mentioned so the prompt stays short.
func FormatPersonaPrompt(state *State) string {
	var b strings.Builder

	if state.Core.Identity != "" {
		b.WriteString(state.Core.Identity)
		b.WriteString("\n")
	}
	if len(state.Core.Beliefs) > 0 {
		b.WriteString("\nCore beliefs:\n")
		for _, belief := range state.Core.Beliefs {
			fmt.Fprintf(&b, "- %s\n", belief)
		}
	}
	if state.Core.Backstory != "" {
		b.WriteString("\nBackstory: ")
		b.WriteString(state.Core.Backstory)
		b.WriteString("\n")
	}

	traits := notableTraits(state.Traits)
	if len(traits) > 0 {
		b.WriteString("\nTendencies:\n")
		for _, trait := range traits {
			fmt.Fprintf(&b, "- %s (%s)\n", trait.Name, describeStrength(trait.Strength))
		}
	}

	if len(state.Dreams.Active) > 0 {
		b.WriteString("\nCurrently pursuing:\n")
		for _, dream := range state.Dreams.Active {
			if dream.ProgressNote != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", dream.Title, dream.ProgressNote)
			} else {
				fmt.Fprintf(&b, "- %s\n", dream.Title)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// notableTraits returns traits that deviate from neutral, strongest
// deviation first.
func notableTraits(traits []Trait) []Trait {
	var notable []Trait
	for _, trait := range traits {
		if trait.Strength >= 0.6 || trait.Strength <= 0.4 {
			notable = append(notable, trait)
		}
	}
	sort.SliceStable(notable, func(i, j int) bool {
		return deviation(notable[i].Strength) > deviation(notable[j].Strength)
	})
	return notable
}

func deviation(strength float64) float64 {
	if strength < 0.5 {
		return 0.5 - strength
	}
	return strength - 0.5
}

func describeStrength(strength float64) string {
	switch {
	case strength >= 0.8:
		return "defining"
	case strength >= 0.6:
		return "pronounced"
	case strength <= 0.2:
		return "strongly avoided"
	default:
		return "avoided"
	}
}
