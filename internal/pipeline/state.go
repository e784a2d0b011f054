package pipeline

import (
	"strings"
	"time"
)

// Intent is the classified purpose of a question.
type Intent string

const (
	IntentSQLQuery   Intent = "sql_query"
	IntentGreeting   Intent = "greeting"
	IntentOutOfScope Intent = "out_of_scope"
)

// ParseIntent normalizes a model-produced label into one of the known
// intents. Anything unrecognized maps to out_of_scope so the caller
// gets guidance instead of an error.
func ParseIntent(label string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.Trim(normalized, `"'.`+" `")
	switch Intent(normalized) {
	case IntentSQLQuery, IntentGreeting, IntentOutOfScope:
		return Intent(normalized)
	}
	return IntentOutOfScope
}

// Stage names the pipeline steps, used for metrics and token accounting.
type Stage string

const (
	StageIntent     Stage = "intent"
	StageGenerate   Stage = "generate"
	StageValidate   Stage = "validate"
	StageExecute    Stage = "execute"
	StageSynthesize Stage = "synthesize"
)

// Limits are the externally supplied guardrails one request must honor.
type Limits struct {
	MaxBytesScanned    int64
	QueryTimeout       time.Duration
	MaxResultRows      int
	ContextTokenBudget int
	RetryBackoff       time.Duration
}
