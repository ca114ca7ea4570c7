package services

// defaultMaxHistoryMessages caps the conversation at the last 20
// messages, roughly 10 user turns.
const defaultMaxHistoryMessages = 20

// History is the bounded, ordered conversation buffer one orchestrator
// builds its reasoning-API requests from. Not safe for concurrent use;
// the orchestrator's turn lock serializes access.
type History struct {
	max      int
	messages []Message
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = defaultMaxHistoryMessages
	}
	return &History{max: max}
}

// Append adds a message at the tail.
func (h *History) Append(msg Message) {
	h.messages = append(h.messages, msg)
}

// Trim drops oldest messages until the buffer is within its cap. Must be
// called only at turn boundaries, never between an assistant tool_use
// message and the tool_result message answering it. If the front cut
// lands on a tool_result message, its requesting assistant turn is
// already gone, so it is dropped too rather than left orphaned.
func (h *History) Trim() int {
	removed := 0
	if len(h.messages) > h.max {
		removed = len(h.messages) - h.max
		h.messages = h.messages[removed:]
	}
	for len(h.messages) > 0 && isToolResultMessage(h.messages[0]) {
		h.messages = h.messages[1:]
		removed++
	}
	return removed
}

// Snapshot returns the buffered messages in order. The returned slice is
// a copy; appends do not alias it.
func (h *History) Snapshot() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len reports the number of buffered messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Clear empties the buffer.
func (h *History) Clear() {
	h.messages = nil
}

func isToolResultMessage(msg Message) bool {
	for _, part := range msg.Content {
		if part.Type == "tool_result" {
			return true
		}
	}
	return false
}
