package chat

import "emoai/app/service/state"

// Event is the wire unit emitted to the caller during a turn. ReplyChunk
// always carries the cumulative reply text, not a delta.
type Event struct {
	ReplyChunk string `json:"reply_chunk"`
	Report     string `json:"report"`
	IsFinal    bool   `json:"is_final"`
	Error      string `json:"error,omitempty"`
}

// Request is one user turn.
type Request struct {
	SessionID string
	UserInput string
	// History optionally carries caller-supplied prior messages; when empty
	// the session's server-side history is used instead.
	History []state.Message
	// PersonaOverride bypasses adaptive selection when it names a known
	// persona.
	PersonaOverride string
}
