package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etherealheim/aria/core/providers"
)

type fakeStateStore struct {
	state     *State
	saved     *State
	saveCalls int
	loadErr   error
	saveErr   error
}

func (f *fakeStateStore) Load() (*State, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.state == nil {
		return DefaultState(), nil
	}
	return f.state, nil
}

func (f *fakeStateStore) Save(state *State) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = state
	return nil
}

type fakeChat struct {
	response string
	err      error
	calls    int
}

func (f *fakeChat) Chat(ctx context.Context, systemPrompt string, messages []providers.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func newTestIdentityEngine(store Store, chat providers.ChatClient) *Engine {
	engine := NewEngine(store, chat, Config{}, nil)
	engine.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return engine
}

func TestReflectInsertsNewTrait(t *testing.T) {
	store := &fakeStateStore{}
	chat := &fakeChat{response: `Here is my assessment:
{"trait_updates": [{"name": "  Curious ", "target_strength": 0.7, "evidence": "asked about three new topics"}], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "user explored new topics", nil))
	require.NotNil(t, store.saved)
	require.Len(t, store.saved.Traits, 1)

	trait := store.saved.Traits[0]
	assert.Equal(t, "curious", trait.Name, "trait names are normalized to lowercase and trimmed")
	assert.Equal(t, 0.7, trait.Strength)
	assert.Equal(t, OriginInferred, trait.Origin)
	assert.Equal(t, "asked about three new topics", trait.LastEvidence)
	require.NotNil(t, trait.LastUpdated)
}

func TestReflectClampsStrengthAndKeepsManualOrigin(t *testing.T) {
	store := &fakeStateStore{state: &State{
		Core: DefaultState().Core,
		Traits: []Trait{
			{Name: "direct", Strength: 0.6, Origin: OriginManual},
		},
	}}
	chat := &fakeChat{response: `{"trait_updates": [{"name": "direct", "target_strength": 1.7, "origin": "inferred"}], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	trait := store.saved.Traits[0]
	assert.Equal(t, 1.0, trait.Strength, "strength is clamped to [0,1]")
	assert.Equal(t, OriginManual, trait.Origin, "manual origin is never downgraded")
}

func TestReflectEnforcesTraitCap(t *testing.T) {
	state := &State{Core: DefaultState().Core}
	for i := 0; i < 8; i++ {
		state.Traits = append(state.Traits, Trait{
			Name:     string(rune('a' + i)),
			Strength: 0.5 + float64(i)*0.05,
			Origin:   OriginInferred,
		})
	}
	store := &fakeStateStore{state: state}
	chat := &fakeChat{response: `{"trait_updates": [{"name": "ninth", "target_strength": 0.95}], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	require.Len(t, store.saved.Traits, 8, "trait list is capped")
	assert.Equal(t, "ninth", store.saved.Traits[0].Name, "strongest trait survives at the front")
	assert.Equal(t, -1, store.saved.FindTrait("a"), "the weakest trait is evicted")
}

func TestDreamStateMachine(t *testing.T) {
	store := &fakeStateStore{state: &State{
		Core: DefaultState().Core,
		Dreams: Dreams{
			Backlog: []DreamEntry{{Title: "learn woodworking", Priority: 2, Origin: OriginInferred}},
			Active:  []DreamEntry{{Title: "ship the app", Priority: 1, Origin: OriginManual}},
		},
	}}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": [
		{"title": "learn woodworking", "action": "promote", "priority": 2},
		{"title": "ship the app", "action": "demote", "reason": "on hold until autumn"},
		{"title": "run a marathon", "action": "add_backlog", "priority": 4}
	]}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	saved := store.saved

	require.Len(t, saved.Dreams.Active, 1)
	assert.Equal(t, "learn woodworking", saved.Dreams.Active[0].Title)

	require.Len(t, saved.Dreams.Backlog, 2)
	demoted := saved.Dreams.Backlog[findDream(saved.Dreams.Backlog, "ship the app")]
	assert.Equal(t, "on hold until autumn", demoted.ProgressNote)
	assert.Equal(t, OriginManual, demoted.Origin, "origin travels with the entry across lists")
	assert.GreaterOrEqual(t, findDream(saved.Dreams.Backlog, "run a marathon"), 0)
}

func TestPromoteMissingTitleIsNoOp(t *testing.T) {
	store := &fakeStateStore{}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": [{"title": "never added", "action": "promote"}]}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	assert.Empty(t, store.saved.Dreams.Active)
	assert.Empty(t, store.saved.Dreams.Backlog)
}

func TestRetireRemovesFromBothLists(t *testing.T) {
	store := &fakeStateStore{state: &State{
		Core: DefaultState().Core,
		Dreams: Dreams{
			Active:  []DreamEntry{{Title: "old plan", Priority: 1}},
			Backlog: []DreamEntry{{Title: "Old Plan", Priority: 2}},
		},
	}}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": [{"title": "old plan", "action": "retire"}]}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	assert.Empty(t, store.saved.Dreams.Active)
	assert.Empty(t, store.saved.Dreams.Backlog)
}

func TestUnknownDreamActionIgnored(t *testing.T) {
	store := &fakeStateStore{}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": [{"title": "something", "action": "archive"}]}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	assert.Empty(t, store.saved.Dreams.Active)
	assert.Empty(t, store.saved.Dreams.Backlog)
}

func TestTraitDecayDriftsTowardNeutral(t *testing.T) {
	stale := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) // 31 days before the test clock
	store := &fakeStateStore{state: &State{
		Core: DefaultState().Core,
		Traits: []Trait{
			{Name: "playful", Strength: 0.9, Origin: OriginInferred, LastUpdated: timePtr(stale)},
		},
	}}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	assert.InDelta(t, 0.86, store.saved.Traits[0].Strength, 1e-9, "0.9 drifts a tenth of its distance to 0.5")
}

func TestFreshTraitDoesNotDecay(t *testing.T) {
	recent := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := &fakeStateStore{state: &State{
		Core: DefaultState().Core,
		Traits: []Trait{
			{Name: "playful", Strength: 0.9, Origin: OriginInferred, LastUpdated: timePtr(recent)},
		},
	}}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	assert.Equal(t, 0.9, store.saved.Traits[0].Strength)
}

func TestDreamDecayDemotesAndDrops(t *testing.T) {
	silentActive := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)  // 31 days silent
	silentBacklog := time.Date(2026, 7, 1, 11, 0, 0, 0, time.UTC) // 62 days silent
	store := &fakeStateStore{state: &State{
		Core: DefaultState().Core,
		Dreams: Dreams{
			Active:  []DreamEntry{{Title: "stalled project", Priority: 1, LastMention: timePtr(silentActive)}},
			Backlog: []DreamEntry{{Title: "forgotten idea", Priority: 2, LastMention: timePtr(silentBacklog)}},
		},
	}}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	saved := store.saved

	assert.Empty(t, saved.Dreams.Active, "a month of silence demotes an active dream")
	require.Len(t, saved.Dreams.Backlog, 1, "two months of silence drops a backlog dream")
	assert.Equal(t, "stalled project", saved.Dreams.Backlog[0].Title)
	assert.Equal(t, 3, saved.Dreams.Backlog[0].Priority, "decay demotion lands at default priority")
}

func TestParseFailureAppliesNothing(t *testing.T) {
	store := &fakeStateStore{}
	chat := &fakeChat{response: "I could not produce structured output this time."}
	engine := newTestIdentityEngine(store, chat)

	err := engine.ReflectAndUpdate(context.Background(), "summary", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, store.saveCalls, "nothing is persisted when the response has no JSON")
}

func TestChatFailureAppliesNothing(t *testing.T) {
	store := &fakeStateStore{}
	chat := &fakeChat{err: errors.New("provider timeout")}
	engine := newTestIdentityEngine(store, chat)

	err := engine.ReflectAndUpdate(context.Background(), "summary", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, store.saveCalls)
}

func TestReflectionDebounce(t *testing.T) {
	lastRun := time.Date(2026, 9, 1, 11, 59, 0, 0, time.UTC) // 60s before the test clock
	store := &fakeStateStore{state: &State{
		Core:             DefaultState().Core,
		LastReflectionAt: timePtr(lastRun),
	}}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	assert.Equal(t, 0, chat.calls, "a cycle inside the debounce window never reaches the model")
	assert.Equal(t, 0, store.saveCalls)
}

func TestReflectSetsTimestamps(t *testing.T) {
	store := &fakeStateStore{}
	chat := &fakeChat{response: `{"trait_updates": [], "dream_updates": []}`}
	engine := newTestIdentityEngine(store, chat)

	require.NoError(t, engine.ReflectAndUpdate(context.Background(), "summary", nil))
	require.NotNil(t, store.saved.UpdatedAt)
	require.NotNil(t, store.saved.LastReflectionAt)
	assert.Equal(t, *store.saved.UpdatedAt, *store.saved.LastReflectionAt)
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"surrounded by prose", `Sure! Here you go: {"a": 1} Hope that helps.`, `{"a": 1}`},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"brace inside string", `{"a": "closing } brace"}`, `{"a": "closing } brace"}`},
		{"escaped quote inside string", `{"a": "say \"hi\" {now}"}`, `{"a": "say \"hi\" {now}"}`},
		{"no object", "plain text only", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSONObject(tc.text))
		})
	}
}
