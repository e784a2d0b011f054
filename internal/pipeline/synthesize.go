package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/querytalk/querytalk/internal/llm"
	"github.com/querytalk/querytalk/internal/session"
	"github.com/querytalk/querytalk/internal/tokens"
	"github.com/querytalk/querytalk/internal/warehouse"
)

const synthesizeSystemPrompt = "You summarize SQL query results for a business user. " +
	"Write two or three plain sentences highlighting the key insight. " +
	"Mention concrete numbers from the results. Do not mention SQL."

// Synthesizer turns tabular results into prose. The fixed prompt parts
// (system prompt, question, SQL, results) are charged against the token
// budget first; conversation history is then added newest first only
// while the combined context stays under the budget.
type Synthesizer struct {
	client  llm.Client
	counter *tokens.Counter
}

func NewSynthesizer(client llm.Client, counter *tokens.Counter) *Synthesizer {
	return &Synthesizer{client: client, counter: counter}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question, sqlText string, result warehouse.Result, history []session.Turn, budget int) (string, int, error) {
	resultBlock := renderResult(result)
	used := s.counter.Count(synthesizeSystemPrompt) +
		s.counter.Count(question) +
		s.counter.Count(sqlText) +
		s.counter.Count(resultBlock)

	var retained []string
	for i := len(history) - 1; i >= 0; i-- {
		entry := fmt.Sprintf("Q: %s\nA: %s", history[i].Question, history[i].Answer)
		cost := s.counter.Count(entry)
		if budget > 0 && used+cost > budget {
			break
		}
		used += cost
		retained = append([]string{entry}, retained...)
	}

	var b strings.Builder
	if len(retained) > 0 {
		b.WriteString("Recent conversation:\n")
		b.WriteString(strings.Join(retained, "\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question:\n%s\n\n", question)
	fmt.Fprintf(&b, "Query executed:\n%s\n\n", sqlText)
	fmt.Fprintf(&b, "Results:\n%s", resultBlock)

	completion, err := s.client.Complete(ctx, llm.Request{
		System:      synthesizeSystemPrompt,
		User:        b.String(),
		Temperature: 0,
	})
	if err != nil {
		return "", 0, fmt.Errorf("synthesize answer: %w", err)
	}
	return completion.Text, completion.Tokens, nil
}

func renderResult(result warehouse.Result) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = fmt.Sprintf("%v", value)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}
