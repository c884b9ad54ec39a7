package state

import "sync"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmotionPoint is one fused observation: what the user said, the stabilized
// label and the stabilized valence. Appended once per turn, never mutated.
type EmotionPoint struct {
	Text    string
	Label   string
	Valence float64
}

type Preferences struct {
	Tone         string
	ReplyLength  string
	Positivity   string
	EmpathyLevel string
}

func DefaultPreferences() Preferences {
	return Preferences{
		Tone:         "neutral and gentle",
		ReplyLength:  "medium",
		Positivity:   "balanced",
		EmpathyLevel: "high",
	}
}

// PrefUpdate is a partial preference change. Empty fields mean "unchanged".
type PrefUpdate struct {
	Tone         string
	ReplyLength  string
	Positivity   string
	EmpathyLevel string
}

func (u PrefUpdate) IsZero() bool {
	return u == PrefUpdate{}
}

// Session holds per-session conversation state. The turn mutex serializes
// whole turns on the same session; the inner mutex guards individual reads
// and writes.
type Session struct {
	id string

	turnMu sync.Mutex

	mu       sync.Mutex
	messages []Message
	emotions []EmotionPoint
}

func (s *Session) ID() string {
	return s.id
}

// BeginTurn blocks until no other turn is running on this session.
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

func (s *Session) AppendEmotion(point EmotionPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emotions = append(s.emotions, point)
}

func (s *Session) Emotions() []EmotionPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]EmotionPoint, len(s.emotions))
	copy(result, s.emotions)

	return result
}

// LastEmotions returns up to n most recent fused observations, oldest first.
func (s *Session) LastEmotions(n int) []EmotionPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.emotions) {
		n = len(s.emotions)
	}

	result := make([]EmotionPoint, n)
	copy(result, s.emotions[len(s.emotions)-n:])

	return result
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Message, len(s.messages))
	copy(result, s.messages)

	return result
}

func (s *Session) AppendExchange(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages,
		Message{Role: "user", Content: userText},
		Message{Role: "assistant", Content: assistantText},
	)
}
