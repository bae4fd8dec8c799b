package dto

// ChatRequest is the body of POST /api/chat. DocID selects the scope:
// "0" searches the whole corpus, any other id grounds the answer in
// that single document's full text.
type ChatRequest struct {
	UserInput string `json:"user_input" validate:"required,min=1"`
	DocID     string `json:"doc_id"`
	SessionID string `json:"session_id" validate:"required,min=1"`
	// Comma-separated document ids restricting the search scope.
	CategoryDocIDs string `json:"category_doc_ids"`
}

type SwitchSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,min=1"`
}

type SwitchSessionResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Messages  int    `json:"messages"`
}

type PromptInfoResponse struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
