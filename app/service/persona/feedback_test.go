package persona

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordOutcomeReward_SkipsInsignificantDelta(t *testing.T) {
	llm := &fakeLLM{response: "should not be called"}
	svc := NewService(llm, rand.New(rand.NewSource(1)))

	svc.RecordOutcomeReward(context.Background(), Empathetic, 0.10, 0.14, "hi", "hello")

	assert.Zero(t, llm.calls)
	assert.Empty(t, svc.RecentFeedback(Empathetic, 3))
}

func TestRecordOutcomeReward_AppendsFeedback(t *testing.T) {
	llm := &fakeLLM{response: "You matched the user's upbeat energy."}
	svc := NewService(llm, rand.New(rand.NewSource(1)))

	svc.RecordOutcomeReward(context.Background(), Empathetic, -0.2, 0.4, "feeling better", "glad to hear it")

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, []string{"You matched the user's upbeat energy."}, svc.RecentFeedback(Empathetic, 3))
}

func TestRecordOutcomeReward_SwallowsFailures(t *testing.T) {
	llm := &fakeLLM{err: errors.New("upstream down")}
	svc := NewService(llm, rand.New(rand.NewSource(1)))

	svc.RecordOutcomeReward(context.Background(), Counselor, 0.0, -0.5, "worse now", "oh no")

	assert.Empty(t, svc.RecentFeedback(Counselor, 3))
}

func TestRecordMetaFeedback_NormalizesAndAppends(t *testing.T) {
	llm := &fakeLLM{response: `"i should provide more concise answers. Additionally, I could..."`}
	svc := NewService(llm, rand.New(rand.NewSource(1)))

	svc.RecordMetaFeedback(context.Background(), Empathetic, "too long", "shorter", "User prefers shorter replies.")

	feedback := svc.RecentFeedback(Empathetic, 3)
	assert.Equal(t, []string{"[Meta Feedback] I should provide more concise answers."}, feedback)
}

func TestNormalizeMetaFeedback(t *testing.T) {
	t.Run("adds missing prefix", func(t *testing.T) {
		got := normalizeMetaFeedback("use a friendlier tone going forward.")
		assert.Equal(t, "[Meta Feedback] I should use a friendlier tone going forward.", got)
	})

	t.Run("keeps i will prefix", func(t *testing.T) {
		got := normalizeMetaFeedback("i will try to use a friendlier tone.")
		assert.Equal(t, "[Meta Feedback] I will try to use a friendlier tone.", got)
	})

	t.Run("truncates to first sentence", func(t *testing.T) {
		got := normalizeMetaFeedback("I should slow down. Also ramble less. And more.")
		assert.Equal(t, "[Meta Feedback] I should slow down.", got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, normalizeMetaFeedback(`  "" `))
	})
}
