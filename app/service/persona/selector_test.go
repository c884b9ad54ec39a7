package persona

import (
	"context"
	"emoai/app/client/nvidia"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Complete(_ context.Context, _ []nvidia.Message, _ float32, _ int) (string, error) {
	f.calls++
	return f.response, f.err
}

func newTestService() *Service {
	return NewService(&fakeLLM{}, rand.New(rand.NewSource(1)))
}

func TestChoose_HelpIntentForcesCounselor(t *testing.T) {
	svc := newTestService()

	assert.Equal(t, Counselor, svc.Choose("joy", "help", 0.9, 0.9))
}

func TestChoose_StrongNegativeEmotionForcesCounselor(t *testing.T) {
	svc := newTestService()

	assert.Equal(t, Counselor, svc.Choose("grief", "chat", -0.9, 0.8))
}

func TestChoose_WeakNegativeEmotionDoesNotForceCounselor(t *testing.T) {
	svc := newTestService()

	// Confidence below the 0.7 gate: any persona may win, but the result
	// must still be a known one.
	chosen := svc.Choose("grief", "chat", -0.9, 0.5)
	_, ok := Lookup(string(chosen))

	assert.True(t, ok)
}

func TestChoose_FunIntentForcesFunny(t *testing.T) {
	svc := newTestService()

	assert.Equal(t, Funny, svc.Choose("neutral", "fun", 0.0, 0.9))
}

func TestChoose_AdaptiveReturnsKnownPersona(t *testing.T) {
	svc := newTestService()

	for i := 0; i < 100; i++ {
		chosen := svc.Choose("neutral", "chat", 0.1, 0.9)
		_, ok := Lookup(string(chosen))
		require.True(t, ok, "unknown persona %q", chosen)
	}
}

func TestSoftmax_SumsToOne(t *testing.T) {
	probs := softmax([]float64{20.1, 20.0, 20.05})

	var sum float64
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
		sum += p
	}

	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSoftmax_ShiftInvariant(t *testing.T) {
	base := softmax([]float64{1, 2, 3})
	shifted := softmax([]float64{1001, 1002, 1003})

	for i := range base {
		assert.InDelta(t, base[i], shifted[i], 1e-9)
	}
}

func TestSoftmax_LargeLogitsStayFinite(t *testing.T) {
	probs := softmax([]float64{1e4, 1e4 + 1, 1e4 - 1})

	var sum float64
	for _, p := range probs {
		sum += p
	}

	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSample_CumulativeScan(t *testing.T) {
	probs := []float64{0.2, 0.5, 0.3}

	assert.Equal(t, Empathetic, sample(order, probs, 0.1))
	assert.Equal(t, Counselor, sample(order, probs, 0.3))
	assert.Equal(t, Funny, sample(order, probs, 0.8))
}

func TestSample_RoundingShortfallReturnsLast(t *testing.T) {
	// Cumulative sum 0.999... < draw: the last persona must win.
	probs := []float64{0.333, 0.333, 0.333}

	assert.Equal(t, Funny, sample(order, probs, 0.9999))
}

func TestTilt(t *testing.T) {
	assert.Equal(t, 0.10, tilt(Empathetic, 0.0))
	assert.Equal(t, 0.0, tilt(Empathetic, -0.1))
	assert.Equal(t, 0.10, tilt(Counselor, -0.1))
	assert.Equal(t, 0.0, tilt(Counselor, 0.0))
	assert.Equal(t, 0.05, tilt(Funny, 0.2))
	assert.Equal(t, 0.0, tilt(Funny, 0.1))
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("counselor")
	assert.True(t, ok)
	assert.Equal(t, Counselor, p)

	_, ok = Lookup("therapist")
	assert.False(t, ok)

	_, ok = Lookup("")
	assert.False(t, ok)
}

func TestFeedbackRing_CapsGrowth(t *testing.T) {
	var ring feedbackRing

	for i := 0; i < 20; i++ {
		ring.add(string(rune('a' + i)))
	}

	last := ring.last(feedbackCapacity)
	require.Len(t, last, feedbackCapacity)

	// Oldest first, most recent entry last.
	assert.Equal(t, string(rune('a'+19)), last[len(last)-1])
	assert.Equal(t, string(rune('a'+12)), last[0])
}

func TestFeedbackRing_LastN(t *testing.T) {
	var ring feedbackRing
	ring.add("one")
	ring.add("two")
	ring.add("three")

	assert.Equal(t, []string{"two", "three"}, ring.last(2))
	assert.Equal(t, []string{"one", "two", "three"}, ring.last(10))
}
