package persona

import (
	"context"
	"emoai/app/client/nvidia"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"
)

const metaFeedbackMarker = "[Meta Feedback] "

// minRewardDelta is the smallest valence change worth learning from.
const minRewardDelta = 0.05

// RecordOutcomeReward turns the observed emotional impact of the last reply
// into one sentence of feedback for the persona. Insignificant changes are
// skipped; failures are logged and swallowed.
func (s *Service) RecordOutcomeReward(ctx context.Context, p Persona, prevValence, newValence float64, userInput, lastReply string) {
	delta := newValence - prevValence
	if math.Abs(delta) < minRewardDelta {
		return
	}

	var feedbackPrompt string
	if delta > 0 {
		feedbackPrompt = fmt.Sprintf(`The user's emotional state improved after your last message.
User said: "%s"
Your reply was: "%s"
Describe in one concise sentence what you did well, so you can repeat it next time.`, userInput, lastReply)
	} else {
		feedbackPrompt = fmt.Sprintf(`The user's emotional state got worse or stayed negative after your last message.
User said: "%s"
Your reply was: "%s"
Describe in one concise sentence what to avoid next time to prevent emotional decline.`, userInput, lastReply)
	}

	feedback, err := s.llm.Complete(ctx, []nvidia.Message{
		{Role: "user", Content: feedbackPrompt},
	}, 0.3, 80)
	if err != nil {
		slog.Warn("Reward feedback generation failed", "persona", p, "error", err)
		return
	}

	if feedback == "" {
		return
	}

	s.appendFeedback(p, feedback)
	slog.Debug("Recorded outcome feedback", "persona", p, "feedback", feedback)
}

// RecordMetaFeedback turns explicit user feedback about the assistant's
// behavior into one imperative self-instruction for the persona.
func (s *Service) RecordMetaFeedback(ctx context.Context, p Persona, userInput, metaKey, metaMeaning string) {
	prompt := fmt.Sprintf(`The user provided feedback about your behavior: "%s"
This feedback implies: "%s" (Keyword: %s)

Based on this, describe in one concise sentence a specific action you should take or avoid in the future to better meet the user's preference. Start your sentence with "I should..." or "I will try to...".
Example: If user said "too long", you might say "I should provide more concise answers."
Example: If user said "too formal", you might say "I will try to use a friendlier tone."`, userInput, metaMeaning, metaKey)

	raw, err := s.llm.Complete(ctx, []nvidia.Message{
		{Role: "user", Content: prompt},
	}, 0.3, 60)
	if err != nil {
		slog.Warn("Meta feedback generation failed", "persona", p, "error", err)
		return
	}

	feedback := normalizeMetaFeedback(raw)
	if feedback == "" {
		return
	}

	s.appendFeedback(p, feedback)
	slog.Debug("Recorded meta feedback", "persona", p, "feedback", feedback)
}

// normalizeMetaFeedback strips quoting, forces the self-instruction prefix,
// capitalizes, truncates to the first sentence and tags the fixed marker.
func normalizeMetaFeedback(raw string) string {
	fb := strings.TrimSpace(raw)
	fb = strings.Trim(fb, `"'`)
	if fb == "" {
		return ""
	}

	lower := strings.ToLower(fb)
	if !strings.HasPrefix(lower, "i should") && !strings.HasPrefix(lower, "i will") {
		fb = "I should " + fb
	}

	runes := []rune(fb)
	runes[0] = unicode.ToUpper(runes[0])
	fb = string(runes)

	if idx := strings.IndexByte(fb, '.'); idx >= 0 {
		fb = fb[:idx]
	}

	return metaFeedbackMarker + fb + "."
}
