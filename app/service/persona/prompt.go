package persona

import (
	"emoai/app/service/state"
	"fmt"
	"strings"

	_ "embed"
)

//go:embed global_persona_template.txt
var globalPersonaTemplate string

//go:embed persona_prompt_template.txt
var personaPromptTemplate string

const recentFeedbackCount = 3

// BuildSystemPrompt assembles the generation system prompt: the global
// persona preamble followed by the persona-specific block.
func (s *Service) BuildSystemPrompt(p Persona, retrievedContext, toneHint string, prefs state.Preferences) string {
	return buildGlobalPersona(prefs) + "\n\n" + s.buildPersonaPrompt(p, retrievedContext, toneHint, prefs)
}

func buildGlobalPersona(prefs state.Preferences) string {
	return renderTemplate(globalPersonaTemplate, map[string]any{
		"tone":          prefs.Tone,
		"length":        prefs.ReplyLength,
		"positivity":    prefs.Positivity,
		"empathy_level": prefs.EmpathyLevel,
	})
}

func (s *Service) buildPersonaPrompt(p Persona, retrievedContext, toneHint string, prefs state.Preferences) string {
	spec := p.Spec()

	var reflection string
	if recent := s.RecentFeedback(p, recentFeedbackCount); len(recent) > 0 {
		var builder strings.Builder
		builder.WriteString("Recent feedback about your replies:\n")
		for _, entry := range recent {
			builder.WriteString(fmt.Sprintf("- %s\n", entry))
		}
		reflection = strings.TrimRight(builder.String(), "\n")
	}

	return renderTemplate(personaPromptTemplate, map[string]any{
		"role":       spec.Role,
		"objective":  spec.Objective,
		"tone":       spec.Tone,
		"tone_hint":  toneHint,
		"avoid":      spec.Avoid,
		"reflection": reflection,
		"pref_hint":  buildPrefHint(prefs),
		"guardrails": spec.Guardrails,
		"context":    retrievedContext,
	})
}

// buildPrefHint emits the preference-override block only when the user has
// actually moved a preference away from its built-in default.
func buildPrefHint(prefs state.Preferences) string {
	if prefs == state.DefaultPreferences() {
		return ""
	}

	return fmt.Sprintf(`[User Preference Override]
The user prefers the following adjustments:
- Tone → %s
- Reply length → %s
- Positivity → %s
Please adapt your language style accordingly, while keeping consistency with your current role and goal.`,
		prefs.Tone, prefs.ReplyLength, prefs.Positivity)
}

func renderTemplate(template string, values map[string]any) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", fmt.Sprint(value))
	}

	return strings.TrimSpace(result)
}
