package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/querytalk/querytalk/internal/llm"
	"github.com/querytalk/querytalk/internal/session"
)

var limitClausePattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)

const generateSystemPrompt = "You convert natural language analytics questions into a single " +
	"read-only DuckDB SQL query. DuckDB uses PostgreSQL-like syntax. " +
	"For array-typed columns such as genres or languages, use UNNEST to expand values before " +
	"filtering or grouping. Return ONLY SQL. No markdown, no explanation."

// Generator produces one read-only SELECT statement grounded in the
// dataset schema, clamping its LIMIT clause to maxRows.
type Generator struct {
	client  llm.Client
	maxRows int
}

func NewGenerator(client llm.Client, maxRows int) *Generator {
	return &Generator{client: client, maxRows: maxRows}
}

func (g *Generator) Generate(ctx context.Context, question, schemaText string, history []session.Turn) (string, int, error) {
	var b strings.Builder
	b.WriteString("Dataset schema:\n")
	b.WriteString(schemaText)
	b.WriteString("\n")
	if len(history) > 0 {
		b.WriteString("Recent conversation (for follow-up context):\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "Q: %s\n", turn.Question)
			if turn.SQL != "" {
				fmt.Fprintf(&b, "SQL: %s\n", turn.SQL)
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question:\n%s\n\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "Rules:\n- Use only the listed tables and columns.\n- Prefer explicit column lists over SELECT *.\n- Include a LIMIT of at most %d rows.\n- Output a single SQL query only.", g.maxRows)

	completion, err := g.client.Complete(ctx, llm.Request{
		System:      generateSystemPrompt,
		User:        b.String(),
		Temperature: 0,
	})
	if err != nil {
		return "", 0, fmt.Errorf("generate sql: %w", err)
	}

	sqlText := clampLimit(stripMarkdownFences(completion.Text), g.maxRows)
	if sqlText == "" {
		return "", completion.Tokens, fmt.Errorf("model returned empty SQL")
	}
	return sqlText, completion.Tokens, nil
}

// clampLimit forces the statement's LIMIT to at most maxRows, appending
// one when the model omitted it.
func clampLimit(sqlText string, maxRows int) string {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" || maxRows <= 0 {
		return sqlText
	}

	matches := limitClausePattern.FindAllStringSubmatchIndex(sqlText, -1)
	if len(matches) == 0 {
		return fmt.Sprintf("%s LIMIT %d", sqlText, maxRows)
	}
	// The last clause is the statement-level LIMIT; subquery limits stay
	// untouched.
	match := matches[len(matches)-1]
	value, err := strconv.Atoi(sqlText[match[2]:match[3]])
	if err != nil || value > maxRows {
		return sqlText[:match[2]] + strconv.Itoa(maxRows) + sqlText[match[3]:]
	}
	return sqlText
}

func stripMarkdownFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
