package persona

import (
	"context"
	"emoai/app/client/nvidia"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/samber/do"
)

const initialScore = 20.0

type completer interface {
	Complete(ctx context.Context, messages []nvidia.Message, temperature float32, maxTokens int) (string, error)
}

// Service selects a response persona per turn and maintains each persona's
// score and textual feedback memory.
type Service struct {
	llm completer

	mu       sync.Mutex
	profiles map[Persona]*Profile
	rand     *rand.Rand
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*nvidia.Client](di), rand.New(rand.NewSource(time.Now().UnixNano()))), nil
}

func NewService(llm completer, rng *rand.Rand) *Service {
	profiles := make(map[Persona]*Profile, len(order))
	for _, p := range order {
		profiles[p] = &Profile{Score: initialScore}
	}

	return &Service{
		llm:      llm,
		profiles: profiles,
		rand:     rng,
	}
}

// Choose picks a persona for the turn. Help intent or strong confident
// negative emotion forces the counselor, fun intent forces the funny
// persona; everything else samples from a softmax over tilted scores.
func (s *Service) Choose(emotionLabel, intent string, valence, confidence float64) Persona {
	if intent == "help" || (negativeLabels[emotionLabel] && valence < -0.6 && confidence > 0.7) {
		return Counselor
	}
	if intent == "fun" {
		return Funny
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logits := make([]float64, len(order))
	for i, p := range order {
		logits[i] = s.profiles[p].Score + tilt(p, valence)
	}

	probs := softmax(logits)

	return sample(order, probs, s.rand.Float64())
}

func tilt(p Persona, valence float64) float64 {
	switch {
	case p == Empathetic && valence >= 0:
		return 0.10
	case p == Counselor && valence < 0:
		return 0.10
	case p == Funny && valence >= 0.2:
		return 0.05
	default:
		return 0
	}
}

// softmax converts logits to a probability distribution. Subtracting the max
// logit first keeps the exponentials finite.
func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}

	exps := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}

	for i := range exps {
		exps[i] /= sum
	}

	return exps
}

// sample scans cumulative probabilities against a single uniform draw. If
// rounding leaves the cumulative sum short of the draw, the last persona
// wins.
func sample(items []Persona, probs []float64, draw float64) Persona {
	var cumulative float64
	for i, p := range probs {
		cumulative += p
		if draw < cumulative {
			return items[i]
		}
	}

	return items[len(items)-1]
}

// RecentFeedback returns up to n most recent feedback sentences for the
// persona, oldest first.
func (s *Service) RecentFeedback(p Persona, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[p]
	if !ok {
		return nil
	}

	return profile.feedback.last(n)
}

func (s *Service) appendFeedback(p Persona, entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile, ok := s.profiles[p]; ok {
		profile.feedback.add(entry)
	}
}
