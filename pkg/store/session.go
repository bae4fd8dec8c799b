package store

// Message is a single turn in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Passage is one retrieved fragment of a regulatory document.
type Passage struct {
	Header     string  `json:"header"`
	Text       string  `json:"text"`
	DocName    string  `json:"doc_name"`
	Similarity float64 `json:"similarity"`
}

// Session represents the active conversation state in memory.
type Session struct {
	ID    string `json:"id"`
	State string `json:"state"` // IDLE | AWAITING_DETAILS | AWAITING_CONFIRMATION

	// Chat history, trimmed to stay within the prompt budget.
	History []Message `json:"history"`

	// Scratch space for the guided prescription workflow. Cleared on
	// every return to IDLE.
	Data map[string]any `json:"data"`

	// Cached retrieval output for follow-up questions. The only state
	// allowed to survive across turns besides History.
	LastRAGContext string    `json:"last_rag_context"`
	LastRAGSources []Passage `json:"last_rag_sources"`
}

const (
	StateIdle                 = "IDLE"
	StateAwaitingDetails      = "AWAITING_DETAILS"
	StateAwaitingConfirmation = "AWAITING_CONFIRMATION"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

const (
	historyTrimTrigger = 20
	historyTrimKeep    = 10
)

// NewSession returns an empty session in the IDLE state.
func NewSession(id string) *Session {
	return &Session{
		ID:      id,
		State:   StateIdle,
		History: []Message{},
		Data:    map[string]any{},
	}
}

// Append records one history entry.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
}

// Trim bounds the history once it grows past the trigger, keeping only
// the most recent entries.
func (s *Session) Trim() {
	if len(s.History) > historyTrimTrigger {
		s.History = s.History[len(s.History)-historyTrimKeep:]
	}
}

// Reset returns the session to IDLE and drops workflow scratch data.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Data = map[string]any{}
}
