package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/querytalk/querytalk/internal/llm"
	"github.com/querytalk/querytalk/internal/session"
)

const intentSystemPrompt = "You classify questions sent to an analytics assistant for an " +
	"entertainment dataset (movies, cinemas, showtimes, streaming activity). " +
	"Reply with exactly one label and nothing else:\n" +
	"- sql_query: the question asks about the data\n" +
	"- greeting: a greeting or small talk\n" +
	"- out_of_scope: anything unrelated to the dataset"

// Classifier labels a question using the deterministic (zero
// temperature) completion mode so identical inputs classify identically.
type Classifier struct {
	client llm.Client
}

func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, question string, history []session.Turn) (Intent, int, error) {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s", question)

	completion, err := c.client.Complete(ctx, llm.Request{
		System:      intentSystemPrompt,
		User:        b.String(),
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		return "", 0, fmt.Errorf("classify intent: %w", err)
	}
	return ParseIntent(completion.Text), completion.Tokens, nil
}
