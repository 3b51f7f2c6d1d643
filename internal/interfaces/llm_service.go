package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// TextGenerator sends one prompt to the text-generation endpoint and returns its reply
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// ModelName identifies the model used for replies
	ModelName() string
}

// ModelLister lists the model identifiers the endpoint serves
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
