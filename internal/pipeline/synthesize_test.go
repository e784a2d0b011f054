package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/querytalk/querytalk/internal/session"
	"github.com/querytalk/querytalk/internal/tokens"
	"github.com/querytalk/querytalk/internal/warehouse"
)

func testResult() warehouse.Result {
	return warehouse.Result{
		Columns: []string{"title", "showings"},
		Rows: [][]any{
			{"Dune", 42},
			{"Oppenheimer", 37},
		},
	}
}

func TestSynthesizeIncludesResults(t *testing.T) {
	counter, err := tokens.NewCounter()
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	client := &scriptedLLM{reply: "Dune led with 42 showings."}
	synthesizer := NewSynthesizer(client, counter)

	insights, tokensUsed, err := synthesizer.Synthesize(context.Background(), "top movies?", "SELECT ...", testResult(), nil, 3000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if insights != "Dune led with 42 showings." {
		t.Fatalf("insights = %q", insights)
	}
	if tokensUsed != 10 {
		t.Fatalf("tokens = %d", tokensUsed)
	}
	for _, want := range []string{"title | showings", "Dune | 42", "top movies?"} {
		if !strings.Contains(client.lastIn.User, want) {
			t.Fatalf("prompt missing %q:\n%s", want, client.lastIn.User)
		}
	}
}

func TestSynthesizeDropsOldestHistoryFirstUnderBudget(t *testing.T) {
	counter, err := tokens.NewCounter()
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	client := &scriptedLLM{reply: "ok"}
	synthesizer := NewSynthesizer(client, counter)

	history := []session.Turn{
		{Question: "oldest question about cinema attendance trends in the north region", Answer: strings.Repeat("history filler ", 40)},
		{Question: "newest question", Answer: "short answer"},
	}

	// Budget fits the fixed prompt parts plus the newest turn but not
	// the oldest.
	result := testResult()
	base := counter.Count(synthesizeSystemPrompt) +
		counter.Count("top movies?") +
		counter.Count("SELECT ...") +
		counter.Count(renderResult(result))
	newest := counter.Count("Q: newest question\nA: short answer")
	budget := base + newest + 2

	if _, _, err := synthesizer.Synthesize(context.Background(), "top movies?", "SELECT ...", result, history, budget); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.Contains(client.lastIn.User, "newest question") {
		t.Fatalf("prompt dropped the newest turn:\n%s", client.lastIn.User)
	}
	if strings.Contains(client.lastIn.User, "oldest question") {
		t.Fatalf("prompt kept the oldest turn past the budget:\n%s", client.lastIn.User)
	}
	if !strings.Contains(client.lastIn.User, "Dune | 42") {
		t.Fatalf("prompt dropped the results:\n%s", client.lastIn.User)
	}
}

func TestSynthesizeChargesSQLAgainstBudget(t *testing.T) {
	counter, err := tokens.NewCounter()
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	client := &scriptedLLM{reply: "ok"}
	synthesizer := NewSynthesizer(client, counter)

	history := []session.Turn{{Question: "newest question", Answer: "short answer"}}
	result := testResult()
	sqlText := "SELECT title, count(*) AS showings FROM showtime_fact GROUP BY title ORDER BY showings DESC LIMIT 10"

	// Leave room for the turn only if the SQL text were free.
	withoutSQL := counter.Count(synthesizeSystemPrompt) +
		counter.Count("top movies?") +
		counter.Count(renderResult(result))
	newest := counter.Count("Q: newest question\nA: short answer")
	budget := withoutSQL + newest + 2

	if _, _, err := synthesizer.Synthesize(context.Background(), "top movies?", sqlText, result, history, budget); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if strings.Contains(client.lastIn.User, "newest question") {
		t.Fatalf("prompt kept history the SQL cost should have displaced:\n%s", client.lastIn.User)
	}
	if !strings.Contains(client.lastIn.User, "Dune | 42") {
		t.Fatalf("prompt dropped the results:\n%s", client.lastIn.User)
	}
}

func TestSynthesizeKeepsResultsWhenBudgetTiny(t *testing.T) {
	counter, err := tokens.NewCounter()
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	client := &scriptedLLM{reply: "ok"}
	synthesizer := NewSynthesizer(client, counter)

	history := []session.Turn{{Question: "earlier", Answer: "earlier answer"}}
	if _, _, err := synthesizer.Synthesize(context.Background(), "top movies?", "SELECT ...", testResult(), history, 1); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if strings.Contains(client.lastIn.User, "Recent conversation") {
		t.Fatalf("prompt kept history under a tiny budget:\n%s", client.lastIn.User)
	}
	if !strings.Contains(client.lastIn.User, "Dune | 42") {
		t.Fatalf("prompt dropped results:\n%s", client.lastIn.User)
	}
}
