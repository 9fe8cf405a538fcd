package backend

// ChatRequest represents the request body for the chat endpoint
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// HistoryEntry is one completed exchange as stored by the server
type HistoryEntry struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// HistoryResponse represents the response from the session history endpoint
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}
