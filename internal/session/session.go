package session

import (
	"context"
	"strings"
)

// DefaultKey is the storage key holding the active session identifier.
const DefaultKey = "chatSessionId"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single chat message
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// IsBlank reports whether the message has no visible text.
func (m Message) IsBlank() bool {
	return strings.TrimSpace(m.Text) == ""
}

// Store persists the active session identifier.
// Exactly one identifier is active at a time; Reset replaces it and never mutates it.
type Store interface {
	// GetOrCreate returns the persisted identifier, creating one if none exists
	GetOrCreate(ctx context.Context) (string, error)

	// Reset abandons the current identifier and persists a fresh one
	Reset(ctx context.Context) (string, error)
}
