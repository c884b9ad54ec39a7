package persona

// Persona is a closed set of response styles. Using a dedicated type keeps
// unknown names from silently selecting undefined behavior.
type Persona string

const (
	Empathetic Persona = "empathetic"
	Counselor  Persona = "counselor"
	Funny      Persona = "funny"
)

// order fixes iteration order for logits and sampling.
var order = []Persona{Empathetic, Counselor, Funny}

type Spec struct {
	Role      string
	Objective string
	Tone      string
	Avoid     string
	// IndexName is the retrieval index backing this persona, empty for none.
	IndexName  string
	Guardrails string
}

const baseGuardrails = `[Behavioral Guardrails]
- Mirror the user's vibe. If cheerful/playful, NEVER apologize or show pity.
- If neutral, stay warm and concise.
- If mildly negative but not asking for help, be supportive without being clinical.`

var specs = map[Persona]Spec{
	Empathetic: {
		Role:       "kind listener",
		Objective:  "reply with gentle understanding and short, natural sentences",
		Tone:       "soft and conversational",
		Avoid:      "therapy clichés or exaggerated sympathy",
		IndexName:  "empathy_agent",
		Guardrails: baseGuardrails,
	},
	Counselor: {
		Role:      "empathetic listener",
		Objective: "hold space for the user without judging or fixing",
		Tone:      "warm, calm, and genuine",
		Avoid:     "giving advice or framing emotions as problems to solve",
		IndexName: "counsel_agent",
		Guardrails: baseGuardrails + `
- Validate pain ONLY if distress/help is explicit.
- Do NOT invent or assume specific details about the user's situation.
- Offer up to 3 concrete, small next steps max.`,
	},
	Funny: {
		Role:      "friendly mood-lifter",
		Objective: "add brief, harmless humor that fits the moment",
		Tone:      "light and spontaneous",
		Avoid:     "personal teasing or heavy sarcasm",
		IndexName: "",
		Guardrails: baseGuardrails + `
- Keep jokes short and gentle; never target the user; avoid sensitive topics.`,
	},
}

// Lookup resolves a caller-supplied name against the known personas.
func Lookup(name string) (Persona, bool) {
	p := Persona(name)
	_, ok := specs[p]

	return p, ok
}

func (p Persona) Spec() Spec {
	return specs[p]
}

// negativeLabels are the emotions that can force the counselor persona.
var negativeLabels = map[string]bool{
	"sadness": true, "fear": true, "anger": true, "disgust": true,
	"grief": true, "remorse": true, "disappointment": true, "nervousness": true,
}

const feedbackCapacity = 8

// feedbackRing keeps the most recent feedback sentences for one persona,
// bounding what used to be unbounded growth.
type feedbackRing struct {
	entries []string
	next    int
	full    bool
}

func (r *feedbackRing) add(entry string) {
	if len(r.entries) < feedbackCapacity && !r.full {
		r.entries = append(r.entries, entry)
		if len(r.entries) == feedbackCapacity {
			r.full = true
			r.next = 0
		}
		return
	}

	r.entries[r.next] = entry
	r.next = (r.next + 1) % feedbackCapacity
}

// last returns up to n entries, oldest first.
func (r *feedbackRing) last(n int) []string {
	var ordered []string
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
		ordered = append(ordered, r.entries[:r.next]...)
	} else {
		ordered = append([]string(nil), r.entries...)
	}

	if n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}

	return ordered
}

// Profile holds one persona's selection score and its feedback memory. The
// score is a static prior seeded at startup; only the feedback list changes.
type Profile struct {
	Score    float64
	feedback feedbackRing
}
