// Package tokens measures prompt sizes and accumulates the per-stage
// token spend reported back to API callers.
package tokens

import (
	"fmt"

	tiktoken "github.com/weaviate/tiktoken-go"
)

// Usage is the per-stage token spend of a single question.
type Usage struct {
	Intent int `json:"intent"`
	Query  int `json:"query"`
	Answer int `json:"answer"`
}

func (u Usage) Total() int {
	return u.Intent + u.Query + u.Answer
}

// Counter estimates token counts locally with the cl100k_base encoding,
// used to keep assembled prompts under the context budget.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

func NewCounter() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &Counter{encoding: encoding}, nil
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}
