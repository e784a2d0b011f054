// Package pipeline orchestrates one conversational analytics request:
// intent classification, SQL generation, safety-checked execution, and
// answer synthesis, with per-stage token accounting.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/querytalk/querytalk/internal/llm"
	"github.com/querytalk/querytalk/internal/observability"
	"github.com/querytalk/querytalk/internal/schema"
	"github.com/querytalk/querytalk/internal/session"
	"github.com/querytalk/querytalk/internal/tokens"
	"github.com/querytalk/querytalk/internal/warehouse"
)

const (
	greetingAnswer = "Hello! I can help you explore the entertainment dataset. " +
		"Ask me about movies, cinemas, showtimes, or streaming activity."
	outOfScopeAnswer = "I can only answer questions about the entertainment dataset " +
		"(movies, cinemas, showtimes, streaming activity). " +
		"Try something like: which movies had the most showings last week?"
)

type Config struct {
	Logger    *slog.Logger
	Schema    *schema.Provider
	Sessions  *session.Store
	LLM       llm.Client
	Warehouse warehouse.Client
	Counter   *tokens.Counter
	Limits    Limits
}

type Pipeline struct {
	logger      *slog.Logger
	schema      *schema.Provider
	sessions    *session.Store
	classifier  *Classifier
	generator   *Generator
	executor    *Executor
	synthesizer *Synthesizer
	limits      Limits
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema provider is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Warehouse == nil {
		return nil, fmt.Errorf("warehouse client is required")
	}
	if cfg.Counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:      logger,
		schema:      cfg.Schema,
		sessions:    cfg.Sessions,
		classifier:  NewClassifier(cfg.LLM),
		generator:   NewGenerator(cfg.LLM, cfg.Limits.MaxResultRows),
		executor:    NewExecutor(cfg.Warehouse, cfg.Limits),
		synthesizer: NewSynthesizer(cfg.LLM, cfg.Counter),
		limits:      cfg.Limits,
	}, nil
}

// Response is the structured outcome of one completed question.
type Response struct {
	SessionID         string
	Intent            Intent
	Query             string
	Columns           []string
	Rows              [][]any
	Insights          string
	Degraded          bool
	Usage             tokens.Usage
	ConversationCount int
}

// Ask runs the full pipeline for one question. The turn is persisted to
// session history only when the pipeline completes; failed requests do
// not pollute conversational context.
func (p *Pipeline) Ask(ctx context.Context, sessionID, question string) (Response, error) {
	resp := Response{SessionID: sessionID}
	history := p.sessions.History(sessionID)

	stageStart := time.Now()
	var intent Intent
	var intentTokens int
	err := p.retry(ctx, func() error {
		var cerr error
		intent, intentTokens, cerr = p.classifier.Classify(ctx, question, history)
		return cerr
	})
	observability.ObserveStage(string(StageIntent), time.Since(stageStart))
	if err != nil {
		return resp, p.fail(ctx, newError(KindIntentClassification, ReasonUpstreamFailure,
			"the question could not be classified", err))
	}
	resp.Intent = intent
	resp.Usage.Intent = intentTokens
	observability.AddLLMTokens(string(StageIntent), intentTokens)
	observability.ObserveQuestion(string(intent))

	switch intent {
	case IntentGreeting:
		resp.Insights = greetingAnswer
		p.finish(sessionID, question, "", resp.Insights, &resp)
		return resp, nil
	case IntentOutOfScope:
		resp.Insights = outOfScopeAnswer
		p.finish(sessionID, question, "", resp.Insights, &resp)
		return resp, nil
	}

	tables, err := p.schema.Tables(ctx)
	if err != nil {
		return resp, p.fail(ctx, newError(KindSchemaUnavailable, ReasonUpstreamFailure,
			"the dataset schema is currently unavailable", err))
	}
	schemaText := schema.PromptText(tables)

	stageStart = time.Now()
	var sqlText string
	var queryTokens int
	err = p.retry(ctx, func() error {
		var gerr error
		sqlText, queryTokens, gerr = p.generator.Generate(ctx, question, schemaText, history)
		return gerr
	})
	observability.ObserveStage(string(StageGenerate), time.Since(stageStart))
	resp.Usage.Query = queryTokens
	observability.AddLLMTokens(string(StageGenerate), queryTokens)
	if err != nil {
		return resp, p.fail(ctx, newError(KindSQLGeneration, ReasonUpstreamFailure,
			"a query could not be generated for the question", err))
	}
	resp.Query = sqlText

	stageStart = time.Now()
	result, err := p.executor.Run(ctx, sqlText)
	observability.ObserveStage(string(StageExecute), time.Since(stageStart))
	if err != nil {
		return resp, p.fail(ctx, err.(*Error))
	}
	resp.Columns = result.Columns
	resp.Rows = result.Rows
	observability.ObserveScannedBytes(result.ScannedBytes)
	p.logger.InfoContext(ctx, "query_executed",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("session_id", sessionID),
		slog.Int("rows", len(result.Rows)),
		slog.Int64("scanned_bytes", result.ScannedBytes),
		slog.String("duration", result.Duration.String()),
	)

	stageStart = time.Now()
	var insights string
	var answerTokens int
	err = p.retry(ctx, func() error {
		var serr error
		insights, answerTokens, serr = p.synthesizer.Synthesize(ctx, question, sqlText, result, history, p.limits.ContextTokenBudget)
		return serr
	})
	observability.ObserveStage(string(StageSynthesize), time.Since(stageStart))
	resp.Usage.Answer = answerTokens
	observability.AddLLMTokens(string(StageSynthesize), answerTokens)
	if err != nil {
		// Synthesis failure degrades the response instead of failing it;
		// the caller still gets the SQL and the raw rows.
		resp.Degraded = true
		observability.IncrementPipelineError(string(KindSynthesis))
		p.logger.WarnContext(ctx, "answer_synthesis_failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	} else {
		resp.Insights = insights
	}

	p.finish(sessionID, question, sqlText, resp.Insights, &resp)
	return resp, nil
}

func (p *Pipeline) finish(sessionID, question, sqlText, answer string, resp *Response) {
	p.sessions.Append(sessionID, session.Turn{
		Question: question,
		SQL:      sqlText,
		Answer:   answer,
	})
	resp.ConversationCount = p.sessions.Count(sessionID)
}

func (p *Pipeline) fail(ctx context.Context, perr *Error) *Error {
	observability.IncrementPipelineError(string(perr.Kind))
	if perr.Kind == KindSafetyViolation {
		observability.IncrementSafetyRejection(string(perr.Reason))
	}
	p.logger.WarnContext(ctx, "pipeline_failed",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("kind", string(perr.Kind)),
		slog.String("reason", string(perr.Reason)),
		slog.String("error", perr.Error()),
	)
	return perr
}

// retry runs fn and, on failure, retries it once after the configured
// backoff. Safety violations and execution failures never pass through
// here; only the transient-network-shaped LLM stages do.
func (p *Pipeline) retry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	backoff := p.limits.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(backoff):
	}
	return fn()
}
