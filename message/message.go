// Package message holds the conversation types exchanged with the language
// model backend.
package message

import "time"

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single conversation message.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolID    string     `json:"tool_id,omitempty"` // set on tool response messages
	CreatedAt time.Time  `json:"created_at"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// New creates a message with the given role and content.
func New(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewToolResponse creates a tool response message for the given call ID.
func NewToolResponse(toolID, content string) *Message {
	msg := New(RoleTool, content)
	msg.ToolID = toolID
	return msg
}

func generateID() string {
	return time.Now().Format("20060102150405.000000")
}
