package pipeline

import "errors"

type Kind string

const (
	KindSchemaUnavailable    Kind = "SCHEMA_UNAVAILABLE"
	KindIntentClassification Kind = "INTENT_CLASSIFICATION_FAILED"
	KindSQLGeneration        Kind = "SQL_GENERATION_FAILED"
	KindSafetyViolation      Kind = "QUERY_SAFETY_VIOLATION"
	KindExecution            Kind = "QUERY_EXECUTION_FAILED"
	KindSynthesis            Kind = "ANSWER_SYNTHESIS_FAILED"
)

type Reason string

const (
	ReasonForbiddenStatement Reason = "forbidden_statement"
	ReasonCostLimitExceeded  Reason = "cost_limit_exceeded"
	ReasonTimeout            Reason = "timeout"
	ReasonUpstreamFailure    Reason = "upstream_failure"
)

// Error is the structured failure every pipeline stage reports through.
// Message is safe to show to callers; the wrapped cause is not.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, reason Reason, message string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, cause: cause}
}

// AsError extracts the structured pipeline error from an error chain.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
