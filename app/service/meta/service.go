package meta

import (
	"context"
	"emoai/app/client/nvidia"
	"emoai/app/service/state"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/samber/do"
)

// metaPatterns maps feedback substrings to what they imply about the user's
// preferences. First match wins; the patterns are disjoint in practice.
var metaPatterns = []struct {
	key     string
	meaning string
}{
	{"shorter", "User prefers shorter replies."},
	{"longer", "User prefers longer replies."},
	{"too formal", "User prefers a more casual tone."},
	{"too casual", "User prefers a more professional tone."},
	{"speak slower", "User wants more structured explanations."},
	{"more emotional", "User wants richer emotional responses."},
	{"less emotional", "User prefers neutral tone."},
}

var generalMetaRe = regexp.MustCompile(`\b(you|your|model|ai|prompt|too long|not human|why you)\b`)

type completer interface {
	Complete(ctx context.Context, messages []nvidia.Message, temperature float32, maxTokens int) (string, error)
}

// Service detects and interprets user statements that are about the
// assistant's behavior rather than about the user's feelings.
type Service struct {
	llm completer
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*nvidia.Client](di)), nil
}

func NewService(llm completer) *Service {
	return &Service{llm: llm}
}

// Detect scans the text for known meta-feedback patterns. Texts that mention
// the assistant without matching a pattern classify as general meta.
func (s *Service) Detect(text string) (key, meaning string, ok bool) {
	t := strings.ToLower(strings.TrimSpace(text))

	for _, pattern := range metaPatterns {
		if strings.Contains(t, pattern.key) {
			return pattern.key, pattern.meaning, true
		}
	}

	if generalMetaRe.MatchString(t) {
		return "general_meta", "User is reflecting about the model or its behavior.", true
	}

	return "", "", false
}

type interpretation struct {
	ReplyLength  string `json:"reply_length"`
	Tone         string `json:"tone"`
	Positivity   string `json:"positivity"`
	Empathy      string `json:"empathy"`
	EmpathyLevel string `json:"empathy_level"`
}

// Interpret asks the generation model which preference dimensions the
// feedback implies should change. Any failure returns an empty update.
func (s *Service) Interpret(ctx context.Context, userInput string) state.PrefUpdate {
	prompt := fmt.Sprintf(`You are a feedback analyzer for a conversational AI system.
The user just said: "%s"
Infer what the user is implicitly asking the chatbot to adjust.

Possible feedback dimensions:
- reply_length: short / long / unchanged
- tone: warmer / calmer / more_humorous / unchanged
- positivity: increase / decrease / unchanged
- empathy: increase / decrease / unchanged

Respond with a short valid JSON object only.
Example: {"reply_length":"short","tone":"warmer"}`, userInput)

	raw, err := s.llm.Complete(ctx, []nvidia.Message{
		{Role: "user", Content: prompt},
	}, 0.2, 100)
	if err != nil {
		slog.Warn("Meta interpretation failed", "error", err)
		return state.PrefUpdate{}
	}

	object := firstJSONObject(raw)
	if object == "" {
		slog.Warn("Meta interpretation returned no JSON object", "raw", raw)
		return state.PrefUpdate{}
	}

	var result interpretation
	if err = json.Unmarshal([]byte(object), &result); err != nil {
		slog.Warn("Failed to parse meta interpretation", "raw", object, "error", err)
		return state.PrefUpdate{}
	}

	update := state.PrefUpdate{
		Tone:         sanitize(result.Tone),
		ReplyLength:  sanitize(result.ReplyLength),
		Positivity:   sanitize(result.Positivity),
		EmpathyLevel: sanitize(result.EmpathyLevel),
	}
	if update.EmpathyLevel == "" {
		update.EmpathyLevel = sanitize(result.Empathy)
	}

	return update
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "unchanged") {
		return ""
	}

	return value
}

// firstJSONObject extracts the first balanced {...} block, tolerating the
// model wrapping its answer in commentary or code fences.
func firstJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]

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
				return raw[start : i+1]
			}
		}
	}

	return ""
}
