package state

import (
	"sync"

	"github.com/samber/do"
)

// DefaultSessionID is the session used when the caller does not name one.
const DefaultSessionID = "default_session"

// toneWindow is how many recent observations feed the global tone estimate.
const toneWindow = 5

// Service is the process-wide conversation state: per-session histories,
// global user preferences and the rolling emotion memory behind the global
// tone estimate. Everything here is memory-resident and resets on restart.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	prefs    Preferences
	memory   []EmotionPoint
}

func New(_ *do.Injector) (*Service, error) {
	s := &Service{
		sessions: make(map[string]*Session),
		prefs:    DefaultPreferences(),
	}
	s.Session(DefaultSessionID)

	return s, nil
}

// Session returns the session with the given id, creating it on first use.
func (s *Service) Session(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok = s.sessions[id]; ok {
		return session
	}

	session = &Session{id: id}
	s.sessions[id] = session

	return session
}

func (s *Service) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.prefs
}

func (s *Service) ApplyPrefUpdate(update PrefUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Tone != "" {
		s.prefs.Tone = update.Tone
	}
	if update.ReplyLength != "" {
		s.prefs.ReplyLength = update.ReplyLength
	}
	if update.Positivity != "" {
		s.prefs.Positivity = update.Positivity
	}
	if update.EmpathyLevel != "" {
		s.prefs.EmpathyLevel = update.EmpathyLevel
	}
}

// RememberEmotion appends a fused observation to the global emotion memory.
func (s *Service) RememberEmotion(point EmotionPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory = append(s.memory, point)
}

// GlobalToneAndTemperature derives a tone hint and a generation temperature
// from the average valence of the last few remembered observations.
func (s *Service) GlobalToneAndTemperature() (string, float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.memory) == 0 {
		return "balanced", 0.7
	}

	recent := s.memory
	if len(recent) > toneWindow {
		recent = recent[len(recent)-toneWindow:]
	}

	var sum float64
	for _, point := range recent {
		sum += point.Valence
	}
	avg := sum / float64(len(recent))

	switch {
	case avg > 0.5:
		return "cheerful and expressive", 0.9
	case avg < -0.5:
		return "calm and supportive", 0.5
	default:
		return "balanced", 0.7
	}
}

// AverageValence averages the full emotion memory, 0 when empty.
func (s *Service) AverageValence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.memory) == 0 {
		return 0
	}

	var sum float64
	for _, point := range s.memory {
		sum += point.Valence
	}

	return sum / float64(len(s.memory))
}
