// Package history defines chat history persistence.
//
// A history is one stored conversation for a character configuration: an
// append-only, time-ordered list of messages identified by (confUID,
// historyUID). The conversation controller appends one human and one ai
// message per completed turn, plus system markers for interruptions, and
// replays a history into model memory when a client resumes it.
//
// Two implementations exist: [MemStore] for single-process deployments and
// tests, and the postgres subpackage for durable storage.
package history

import (
	"context"
	"errors"
	"time"
)

// Message roles.
const (
	RoleHuman  = "human"
	RoleAI     = "ai"
	RoleSystem = "system"
)

// ErrNotFound is returned when the addressed history does not exist.
var ErrNotFound = errors.New("history: not found")

// Message is one persisted chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Name is the display name of the speaker (human name or character
	// name). Empty for system messages.
	Name string `json:"name,omitempty"`

	// Avatar is the character's avatar path, set on ai messages only.
	Avatar string `json:"avatar,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Info summarizes one stored history for listing in the client UI.
type Info struct {
	HistoryUID string    `json:"uid"`
	CreatedAt  time.Time `json:"created_at"`

	// Latest is the most recent message, or nil for an empty history.
	Latest *Message `json:"latest_message,omitempty"`
}

// Store is the abstraction over chat history storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// NewHistory creates an empty history under confUID and returns its uid.
	NewHistory(ctx context.Context, confUID string) (string, error)

	// Append adds one message to an existing history.
	// Returns ErrNotFound when the history does not exist.
	Append(ctx context.Context, confUID, historyUID string, msg Message) error

	// Messages returns the history's messages in chronological order.
	// Returns ErrNotFound when the history does not exist.
	Messages(ctx context.Context, confUID, historyUID string) ([]Message, error)

	// List returns summaries of all histories under confUID, newest first.
	List(ctx context.Context, confUID string) ([]Info, error)

	// Delete removes a history and its messages. Deleting a history that
	// does not exist is not an error.
	Delete(ctx context.Context, confUID, historyUID string) error
}
