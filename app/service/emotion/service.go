package emotion

import (
	"context"
	"emoai/app/client/nvidia"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/do"
)

// Observation is a single classified user turn. Immutable once produced.
type Observation struct {
	Label      string
	Confidence float64
	Valence    float64
}

type completer interface {
	Complete(ctx context.Context, messages []nvidia.Message, temperature float32, maxTokens int) (string, error)
}

// Service wraps the external classification model and owns the keyword
// fallback used when the model fails or answers garbage.
type Service struct {
	llm completer
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*nvidia.Client](di)), nil
}

func NewService(llm completer) *Service {
	return &Service{llm: llm}
}

type classifierResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Detect classifies the text into one of the known labels. Upstream failures
// degrade to the keyword fallback with low confidence, never to an error.
func (s *Service) Detect(ctx context.Context, text string) Observation {
	label, score, err := s.classify(ctx, text)
	if err != nil {
		slog.Warn("Emotion classification failed, using keyword fallback", "error", err)

		label = keywordFallback(text)
		score = 0.4
	}

	return Observation{
		Label:      label,
		Confidence: score,
		Valence:    adjustForEmoji(text, valenceByLabel[label]),
	}
}

func (s *Service) classify(ctx context.Context, text string) (string, float64, error) {
	systemPrompt := fmt.Sprintf(`You are an emotion classification API.
Classify the user's text into ONE of the following emotions:
[%s]

Return a JSON object: {"label": "emotion_name", "score": 0.95}
Score should be between 0.0 and 1.0 representing confidence.
If unsure, use "neutral".`, strings.Join(knownLabels(), ", "))

	raw, err := s.llm.Complete(ctx, []nvidia.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}, 0.1, 50)
	if err != nil {
		return "", 0, fmt.Errorf("classifier call failed: %w", err)
	}

	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "json")
	raw = strings.TrimSpace(raw)

	var response classifierResponse
	if err = json.Unmarshal([]byte(raw), &response); err != nil {
		return "", 0, fmt.Errorf("failed to unmarshal classifier response: %w", err)
	}

	label := response.Label
	if _, ok := valenceByLabel[label]; !ok {
		label = "neutral"
	}

	score := response.Score
	if score <= 0 || score > 1 {
		score = 0.5
	}

	return label, score, nil
}

// DetectIntent derives a coarse intent from keyword patterns, checked in
// priority order: fun, help, ask, chat.
func DetectIntent(text string) string {
	t := strings.ToLower(text)

	switch {
	case funRe.MatchString(t):
		return "fun"
	case helpRe.MatchString(t):
		return "help"
	case askRe.MatchString(t):
		return "ask"
	default:
		return "chat"
	}
}

func keywordFallback(text string) string {
	t := strings.ToLower(text)

	for _, pattern := range fallbackPatterns {
		if pattern.re.MatchString(t) {
			return pattern.label
		}
	}

	return "neutral"
}

// adjustForEmoji blends the label valence with the average valence of any
// known emoji present in the text.
func adjustForEmoji(text string, base float64) float64 {
	var sum float64
	var count int

	for _, r := range text {
		if v, ok := emojiValence[r]; ok {
			sum += v
			count++
		}
	}

	if count == 0 {
		return base
	}

	return 0.7*base + 0.3*sum/float64(count)
}

func knownLabels() []string {
	labels := make([]string, 0, len(valenceByLabel))
	for label := range valenceByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return labels
}
