// Package transcript persists a best-effort record of each completed turn.
// Failures here never affect the turn itself.
package transcript

import (
	"context"
	"time"

	"github.com/launchforge/launchforge/lifecycle"
)

// Turn is the persisted record of one request/response cycle.
type Turn struct {
	ID             string                 `bson:"_id" json:"id"`
	ProjectID      string                 `bson:"project_id" json:"project_id"`
	ConversationID string                 `bson:"conversation_id" json:"conversation_id"`
	UserMessage    string                 `bson:"user_message" json:"user_message"`
	AssistantText  string                 `bson:"assistant_text" json:"assistant_text"`
	Tools          []lifecycle.Invocation `bson:"tools" json:"tools"`
	InputTokens    int                    `bson:"input_tokens" json:"input_tokens"`
	OutputTokens   int                    `bson:"output_tokens" json:"output_tokens"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
}

// Store persists turn transcripts.
type Store interface {
	Save(ctx context.Context, turn *Turn) error
}

// Noop discards transcripts; used when no store is configured.
type Noop struct{}

// Save implements Store.
func (Noop) Save(context.Context, *Turn) error { return nil }
