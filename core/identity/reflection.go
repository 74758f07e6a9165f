package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/etherealheim/aria/core/providers"
)

// Store is the persistence surface the engine reflects against.
// FileStore satisfies it.
type Store interface {
	Load() (*State, error)
	Save(*State) error
}

// Config tunes reflection behavior. Zero values are replaced with
// defaults by NewEngine.
type Config struct {
	// TraitCap bounds the trait list; the least-strong entries are
	// evicted on overflow.
	TraitCap int

	// ActiveDreamCap and BacklogDreamCap bound the dream lists; the
	// lowest-priority entries are evicted on overflow.
	ActiveDreamCap  int
	BacklogDreamCap int

	// TraitDecayAfter is how long an untouched trait holds its
	// strength before drifting back toward neutral.
	TraitDecayAfter time.Duration

	// ActiveDreamDecayAfter demotes an unmentioned active dream to the
	// backlog; BacklogDreamDecayAfter drops an unmentioned backlog
	// dream entirely.
	ActiveDreamDecayAfter  time.Duration
	BacklogDreamDecayAfter time.Duration

	// ReflectionDebounce skips a cycle when the previous one ran less
	// than this long ago.
	ReflectionDebounce time.Duration
}

func (c *Config) applyDefaults() {
	if c.TraitCap == 0 {
		c.TraitCap = 8
	}
	if c.ActiveDreamCap == 0 {
		c.ActiveDreamCap = 3
	}
	if c.BacklogDreamCap == 0 {
		c.BacklogDreamCap = 5
	}
	if c.TraitDecayAfter == 0 {
		c.TraitDecayAfter = 21 * 24 * time.Hour
	}
	if c.ActiveDreamDecayAfter == 0 {
		c.ActiveDreamDecayAfter = 30 * 24 * time.Hour
	}
	if c.BacklogDreamDecayAfter == 0 {
		c.BacklogDreamDecayAfter = 60 * 24 * time.Hour
	}
	if c.ReflectionDebounce == 0 {
		c.ReflectionDebounce = 120 * time.Second
	}
}

// TraitUpdate is one trait change proposed by the reflection model.
type TraitUpdate struct {
	Name           string  `json:"name"`
	TargetStrength float64 `json:"target_strength"`
	Origin         string  `json:"origin,omitempty"`
	Evidence       string  `json:"evidence,omitempty"`
}

// DreamUpdate is one dream-list transition proposed by the reflection
// model.
type DreamUpdate struct {
	Title    string `json:"title"`
	Action   string `json:"action"`
	Priority int    `json:"priority,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type reflectionResult struct {
	TraitUpdates []TraitUpdate `json:"trait_updates"`
	DreamUpdates []DreamUpdate `json:"dream_updates"`
}

// Engine evolves a persisted identity from conversation evidence. One
// reflection at a time per persona; callers serialize invocations.
type Engine struct {
	store  Store
	chat   providers.ChatClient
	config Config
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewEngine builds a reflection engine around a state store and a chat
// client.
func NewEngine(store Store, chat providers.ChatClient, config Config, logger *slog.Logger) *Engine {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		chat:   chat,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// ReflectAndUpdate runs one reflection cycle: ask the model what the
// conversation revealed, apply its proposed updates under the caps,
// decay stale entries, and persist the whole document. A cycle that
// runs too soon after the previous one is skipped. Any returned error
// leaves the persisted state untouched.
func (e *Engine) ReflectAndUpdate(ctx context.Context, summary string, recentUserMessages []string) error {
	state, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("load identity state: %w", err)
	}
	now := e.now()
	if state.LastReflectionAt != nil && now.Sub(*state.LastReflectionAt) < e.config.ReflectionDebounce {
		e.logger.Debug("reflection debounced", "last", state.LastReflectionAt)
		return nil
	}

	prompt := e.buildReflectionPrompt(state, summary, recentUserMessages)
	response, err := e.chat.Chat(ctx, reflectionSystemPrompt, []providers.Message{providers.UserMessage(prompt)})
	if err != nil {
		return fmt.Errorf("reflection chat call: %w", err)
	}

	raw := extractJSONObject(response)
	if raw == "" {
		return fmt.Errorf("reflection response contains no JSON object")
	}
	var result reflectionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fmt.Errorf("parse reflection response: %w", err)
	}

	for _, update := range result.TraitUpdates {
		e.applyTraitUpdate(state, update, now)
	}
	for _, update := range result.DreamUpdates {
		e.applyDreamUpdate(state, update, now)
	}
	e.enforceCaps(state)
	e.applyDecay(state, now)

	state.UpdatedAt = &now
	state.LastReflectionAt = &now
	if err := e.store.Save(state); err != nil {
		return fmt.Errorf("persist identity state: %w", err)
	}
	e.logger.Debug("reflection applied",
		"trait_updates", len(result.TraitUpdates),
		"dream_updates", len(result.DreamUpdates))
	return nil
}

// ============================================================
// Trait updates
// ============================================================

func (e *Engine) applyTraitUpdate(state *State, update TraitUpdate, now time.Time) {
	name := strings.ToLower(strings.TrimSpace(update.Name))
	if name == "" {
		return
	}
	strength := clamp01(update.TargetStrength)

	if i := state.FindTrait(name); i >= 0 {
		trait := &state.Traits[i]
		trait.Strength = strength
		trait.LastUpdated = &now
		if update.Evidence != "" {
			trait.LastEvidence = update.Evidence
		}
		// Origin only ever moves up to manual.
		if ParseOrigin(update.Origin) == OriginManual {
			trait.Origin = OriginManual
		}
		return
	}
	state.Traits = append(state.Traits, Trait{
		Name:         name,
		Strength:     strength,
		Origin:       ParseOrigin(update.Origin),
		LastEvidence: update.Evidence,
		LastUpdated:  &now,
	})
}

// ============================================================
// Dream updates
// ============================================================

func (e *Engine) applyDreamUpdate(state *State, update DreamUpdate, now time.Time) {
	title := strings.TrimSpace(update.Title)
	if title == "" {
		return
	}
	priority := update.Priority
	if priority < 1 {
		priority = 3
	}

	switch strings.ToLower(strings.TrimSpace(update.Action)) {
	case "add_active":
		state.Dreams.Backlog, _, _ = removeDream(state.Dreams.Backlog, title)
		state.Dreams.Active = upsertDream(state.Dreams.Active, title, priority, update.Reason, now)
	case "add_backlog":
		state.Dreams.Active, _, _ = removeDream(state.Dreams.Active, title)
		state.Dreams.Backlog = upsertDream(state.Dreams.Backlog, title, priority, update.Reason, now)
	case "promote":
		rest, entry, ok := removeDream(state.Dreams.Backlog, title)
		if !ok {
			return
		}
		state.Dreams.Backlog = rest
		entry.Priority = priority
		entry.LastMention = &now
		if update.Reason != "" {
			entry.ProgressNote = update.Reason
		}
		state.Dreams.Active = append(state.Dreams.Active, entry)
	case "demote":
		rest, entry, ok := removeDream(state.Dreams.Active, title)
		if !ok {
			return
		}
		state.Dreams.Active = rest
		entry.Priority = priority
		entry.LastMention = &now
		if update.Reason != "" {
			entry.ProgressNote = update.Reason
		}
		state.Dreams.Backlog = append(state.Dreams.Backlog, entry)
	case "retire":
		state.Dreams.Active, _, _ = removeDream(state.Dreams.Active, title)
		state.Dreams.Backlog, _, _ = removeDream(state.Dreams.Backlog, title)
	default:
		e.logger.Debug("unknown dream action ignored", "action", update.Action, "title", title)
	}
}

// upsertDream inserts a new entry or refreshes an existing one in
// place.
func upsertDream(list []DreamEntry, title string, priority int, note string, now time.Time) []DreamEntry {
	if i := findDream(list, title); i >= 0 {
		list[i].Priority = priority
		list[i].LastMention = &now
		if note != "" {
			list[i].ProgressNote = note
		}
		return list
	}
	return append(list, DreamEntry{
		Title:        title,
		Priority:     priority,
		Origin:       OriginInferred,
		LastMention:  &now,
		ProgressNote: note,
	})
}

// ============================================================
// Caps and decay
// ============================================================

func (e *Engine) enforceCaps(state *State) {
	sort.SliceStable(state.Traits, func(i, j int) bool {
		return state.Traits[i].Strength > state.Traits[j].Strength
	})
	if len(state.Traits) > e.config.TraitCap {
		state.Traits = state.Traits[:e.config.TraitCap]
	}

	state.Dreams.Active = capDreams(state.Dreams.Active, e.config.ActiveDreamCap)
	state.Dreams.Backlog = capDreams(state.Dreams.Backlog, e.config.BacklogDreamCap)
}

func capDreams(list []DreamEntry, limit int) []DreamEntry {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority < list[j].Priority
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// applyDecay drifts untouched traits toward neutral and ages out
// unmentioned dreams. Runs every cycle regardless of what the model
// proposed.
func (e *Engine) applyDecay(state *State, now time.Time) {
	for i := range state.Traits {
		trait := &state.Traits[i]
		if trait.LastUpdated == nil {
			continue
		}
		if now.Sub(*trait.LastUpdated) >= e.config.TraitDecayAfter {
			trait.Strength -= (trait.Strength - 0.5) * 0.1
		}
	}

	var active []DreamEntry
	for _, entry := range state.Dreams.Active {
		if entry.LastMention != nil && now.Sub(*entry.LastMention) >= e.config.ActiveDreamDecayAfter {
			entry.Priority = 3
			state.Dreams.Backlog = append(state.Dreams.Backlog, entry)
			continue
		}
		active = append(active, entry)
	}
	state.Dreams.Active = active

	var backlog []DreamEntry
	for _, entry := range state.Dreams.Backlog {
		if entry.LastMention != nil && now.Sub(*entry.LastMention) >= e.config.BacklogDreamDecayAfter {
			continue
		}
		backlog = append(backlog, entry)
	}
	state.Dreams.Backlog = backlog
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ============================================================
// Prompt construction and response extraction
// ============================================================

const reflectionSystemPrompt = `You maintain the evolving identity of a personal assistant. ` +
	`Given the current identity state and a recent conversation, propose small, evidence-backed adjustments. ` +
	`Respond with a single JSON object and nothing else.`

func (e *Engine) buildReflectionPrompt(state *State, summary string, recentUserMessages []string) string {
	serialized, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		serialized = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("Current identity state:\n")
	b.Write(serialized)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- The core section (identity, beliefs, backstory) is immutable. Never propose changes to it.\n")
	b.WriteString("- Trait strength changes must be small, 0.1 to 0.2 per reflection.\n")
	b.WriteString("- Only add a new trait when several messages clearly support it.\n")
	fmt.Fprintf(&b, "- At most %d active dreams and %d backlog dreams. Prefer add_backlog over add_active.\n",
		e.config.ActiveDreamCap, e.config.BacklogDreamCap)
	b.WriteString("- Only promote a backlog dream after repeated mentions.\n")
	b.WriteString("\nConversation summary:\n")
	b.WriteString(summary)
	if len(recentUserMessages) > 0 {
		b.WriteString("\n\nRecent user messages:\n")
		for _, msg := range recentUserMessages {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}
	b.WriteString("\nRespond with JSON: {\"trait_updates\": [{\"name\", \"target_strength\", \"origin\", \"evidence\"}], ")
	b.WriteString("\"dream_updates\": [{\"title\", \"action\": \"add_active|add_backlog|promote|demote|retire\", \"priority\", \"reason\"}]}")
	return b.String()
}

// extractJSONObject returns the first balanced {...} span in text,
// tolerating prose around it. Returns "" when no balanced object
// exists. Braces inside JSON strings are accounted for.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
