// Package llm defines the chat-completion interface the pipeline stages
// use for classification, SQL generation, and answer synthesis.
package llm

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is a single model response plus the tokens it consumed as
// reported by the provider.
type Completion struct {
	Text   string
	Tokens int
}

type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
