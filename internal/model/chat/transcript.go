package chat

import (
	"time"

	"github.com/google/uuid"
)

// Transcript is the ordered, append-only history of one user's conversation.
// Its first element is always the system instruction turn.
type Transcript []Turn

// NewTurn stamps a turn with an identifier and creation time.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	copied := make(Transcript, len(t))
	copy(copied, t)
	return copied
}

// Last returns the final turn, or false for an empty transcript.
func (t Transcript) Last() (Turn, bool) {
	if len(t) == 0 {
		return Turn{}, false
	}
	return t[len(t)-1], true
}
