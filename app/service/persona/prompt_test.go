package persona

import (
	"emoai/app/service/state"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt_ContainsPersonaSpec(t *testing.T) {
	svc := newTestService()

	prompt := svc.BuildSystemPrompt(Counselor, "some retrieved text", "balanced", state.DefaultPreferences())

	spec := Counselor.Spec()
	assert.Contains(t, prompt, "You are a "+spec.Role+".")
	assert.Contains(t, prompt, spec.Objective)
	assert.Contains(t, prompt, "global tone hint: balanced")
	assert.Contains(t, prompt, spec.Avoid)
	assert.Contains(t, prompt, "some retrieved text")
	assert.Contains(t, prompt, "Offer up to 3 concrete, small next steps max.")
}

func TestBuildSystemPrompt_GlobalPreambleReflectsPreferences(t *testing.T) {
	svc := newTestService()
	prefs := state.DefaultPreferences()
	prefs.Tone = "playful"

	prompt := svc.BuildSystemPrompt(Empathetic, "", "balanced", prefs)

	assert.Contains(t, prompt, "- Tone: playful")
	assert.Contains(t, prompt, "- Empathy level: high")
}

func TestBuildSystemPrompt_OverrideBlockHiddenAtDefaults(t *testing.T) {
	svc := newTestService()

	prompt := svc.BuildSystemPrompt(Empathetic, "", "balanced", state.DefaultPreferences())

	assert.NotContains(t, prompt, "[User Preference Override]")
}

func TestBuildSystemPrompt_OverrideBlockShownWhenChanged(t *testing.T) {
	svc := newTestService()
	prefs := state.DefaultPreferences()
	prefs.ReplyLength = "short"

	prompt := svc.BuildSystemPrompt(Empathetic, "", "balanced", prefs)

	assert.Contains(t, prompt, "[User Preference Override]")
	assert.Contains(t, prompt, "Reply length → short")
}

func TestBuildSystemPrompt_IncludesRecentFeedbackOnly(t *testing.T) {
	llm := &fakeLLM{}
	svc := NewService(llm, rand.New(rand.NewSource(1)))

	for _, entry := range []string{"first", "second", "third", "fourth"} {
		svc.appendFeedback(Funny, entry)
	}

	prompt := svc.BuildSystemPrompt(Funny, "", "balanced", state.DefaultPreferences())

	require.Contains(t, prompt, "Recent feedback about your replies:")
	assert.NotContains(t, prompt, "- first")
	assert.Contains(t, prompt, "- second")
	assert.Contains(t, prompt, "- third")
	assert.Contains(t, prompt, "- fourth")
}

func TestBuildSystemPrompt_NoFeedbackNoReflectionHeader(t *testing.T) {
	svc := newTestService()

	prompt := svc.BuildSystemPrompt(Funny, "", "balanced", state.DefaultPreferences())

	assert.NotContains(t, prompt, "Recent feedback about your replies:")
}

func TestBuildSystemPrompt_NoUnresolvedPlaceholders(t *testing.T) {
	svc := newTestService()
	svc.appendFeedback(Empathetic, "stay gentle")
	prefs := state.DefaultPreferences()
	prefs.Positivity = "increase"

	prompt := svc.BuildSystemPrompt(Empathetic, "context text", "cheerful and expressive", prefs)

	for _, key := range []string{"{role}", "{objective}", "{tone}", "{tone_hint}", "{avoid}",
		"{reflection}", "{pref_hint}", "{guardrails}", "{context}",
		"{length}", "{positivity}", "{empathy_level}"} {
		assert.False(t, strings.Contains(prompt, key), "unresolved placeholder %s", key)
	}
}
