package emotion

import (
	"context"
	"emoai/app/client/nvidia"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(_ context.Context, _ []nvidia.Message, _ float32, _ int) (string, error) {
	return f.response, f.err
}

func TestDetect_ParsesClassifierResponse(t *testing.T) {
	svc := NewService(&fakeLLM{response: `{"label": "sadness", "score": 0.92}`})

	obs := svc.Detect(context.Background(), "everything is falling apart")

	assert.Equal(t, "sadness", obs.Label)
	assert.Equal(t, 0.92, obs.Confidence)
	assert.Equal(t, -0.8, obs.Valence)
}

func TestDetect_StripsCodeFences(t *testing.T) {
	svc := NewService(&fakeLLM{response: "```json\n{\"label\": \"joy\", \"score\": 0.8}\n```"})

	obs := svc.Detect(context.Background(), "what a day")

	assert.Equal(t, "joy", obs.Label)
	assert.Equal(t, 0.8, obs.Confidence)
}

func TestDetect_UnknownLabelFallsBackToNeutral(t *testing.T) {
	svc := NewService(&fakeLLM{response: `{"label": "melancholia", "score": 0.9}`})

	obs := svc.Detect(context.Background(), "hmm")

	assert.Equal(t, "neutral", obs.Label)
	assert.Equal(t, 0.0, obs.Valence)
}

func TestDetect_ServiceFailureUsesKeywordFallback(t *testing.T) {
	svc := NewService(&fakeLLM{err: errors.New("upstream down")})

	obs := svc.Detect(context.Background(), "I am so sad and lonely")

	assert.Equal(t, "sadness", obs.Label)
	assert.Equal(t, 0.4, obs.Confidence)
	assert.Equal(t, -0.8, obs.Valence)
}

func TestDetect_UnparseableResponseUsesKeywordFallback(t *testing.T) {
	svc := NewService(&fakeLLM{response: "I think the user is happy!"})

	obs := svc.Detect(context.Background(), "I love this, awesome")

	assert.Equal(t, "joy", obs.Label)
	assert.Equal(t, 0.4, obs.Confidence)
}

func TestDetect_EmojiAdjustsValence(t *testing.T) {
	svc := NewService(&fakeLLM{response: `{"label": "joy", "score": 0.9}`})

	obs := svc.Detect(context.Background(), "great day 😢")

	// 0.7*1.0 + 0.3*(-0.9)
	assert.InDelta(t, 0.43, obs.Valence, 1e-9)
}

func TestKeywordFallback_Neutral(t *testing.T) {
	assert.Equal(t, "neutral", keywordFallback("the weather exists"))
}

func TestDetectIntent(t *testing.T) {
	cases := map[string]string{
		"tell me a joke":                          "fun",
		"I don't know what to do, please help":    "help",
		"why does this keep happening":            "ask",
		"just checking in":                        "chat",
		"that was a funny story, how did it end?": "fun",
	}

	for text, want := range cases {
		assert.Equal(t, want, DetectIntent(text), "text=%q", text)
	}
}
