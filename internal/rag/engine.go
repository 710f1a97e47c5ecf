// Package rag orchestrates a question end to end: validation, intent
// classification, and either a tool report enriched with related
// documentation or retrieval-augmented generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/intent"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/tools"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/validate"
)

// Retriever finds the k most similar chunks for a query.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]docs.Chunk, error)
}

// Generator produces an answer from a fully composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is the structured outcome of one question.
type Result struct {
	Answer         string           `json:"answer"`
	Sources        []string         `json:"sources"`
	SourceMetadata []map[string]any `json:"source_metadata"`
	ToolUsed       string           `json:"tool_used,omitempty"`
	Intent         string           `json:"intent"`
}

const (
	retrieveK       = 5
	contextChunks   = 3
	contextCharsMax = 800
	excerptCharsMax = 300
	toolSourcesMax  = 3

	noMatchAnswer = "I couldn't find relevant information in the Salesforce documentation to answer your question. Please try rephrasing or ask about Salesforce development, security, or best practices."

	generationApology = "I encountered an error processing your question. Please try again or rephrase your question."
)

const answerPromptFormat = `You are a Salesforce Architecture & Best Practices Advisor. Use the following context from official Salesforce documentation to provide expert guidance.

Context from Salesforce Documentation:
%s

Question: %s

Instructions:
- Provide detailed, actionable advice based on the Salesforce documentation
- Include specific examples and code snippets when relevant
- Reference best practices and governor limits when applicable
- Mention security considerations when relevant
- Cite which Salesforce guide the information comes from
- If the question involves architecture decisions, provide pros/cons of different approaches

Provide a comprehensive answer:`

// Engine wires the collaborators together. Both handles are created
// lazily on first use so construction stays cheap and failures surface
// on the first question instead of at startup.
type Engine struct {
	retrieverFn func() (Retriever, error)
	generatorFn func() (Generator, error)

	retrieverOnce sync.Once
	retriever     Retriever
	retrieverErr  error

	generatorOnce sync.Once
	generator     Generator
	generatorErr  error

	onGeneration func(prompt, response string)
	logger       *slog.Logger
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithGenerationObserver registers a callback invoked after every
// successful model generation, for usage accounting.
func WithGenerationObserver(fn func(prompt, response string)) Option {
	return func(e *Engine) { e.onGeneration = fn }
}

func New(retrieverFn func() (Retriever, error), generatorFn func() (Generator, error), opts ...Option) *Engine {
	e := &Engine{
		retrieverFn: retrieverFn,
		generatorFn: generatorFn,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer processes one question. Validation failures return a
// *validate.ValidationError and retrieval failures propagate; only
// generation failures degrade to an apology answer, since by then the
// retrieved sources are still worth returning.
func (e *Engine) Answer(ctx context.Context, question string) (*Result, error) {
	cleaned, err := validate.Question(question)
	if err != nil {
		return nil, err
	}

	it := intent.Classify(cleaned)
	e.logger.Debug("classified question", "intent", it.String())

	if it != intent.GeneralRAG {
		return e.answerWithTool(ctx, cleaned, it)
	}
	return e.answerWithRetrieval(ctx, cleaned)
}

func (e *Engine) answerWithTool(ctx context.Context, question string, it intent.Intent) (*Result, error) {
	var label, report string
	switch it {
	case intent.LimitsCalc:
		label = tools.LimitsCalculatorLabel
		report = tools.CalculateGovernorLimits(intent.ExtractOperations(question))
	case intent.CodeReview:
		label = tools.ApexReviewerLabel
		report = tools.ReviewApexCode(intent.ExtractCode(question))
	case intent.QueryOptimize:
		label = tools.SOQLOptimizerLabel
		report = tools.OptimizeSOQLQuery(intent.ExtractQuery(question))
	}

	retriever, err := e.getRetriever()
	if err != nil {
		return nil, err
	}
	chunks, err := retriever.SimilaritySearch(ctx, question, retrieveK)
	if err != nil {
		return nil, fmt.Errorf("retrieving related documentation: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s Results:\n\n%s", label, report)

	if len(chunks) > 0 {
		sb.WriteString("\n\n---\n\n## 📚 Related Salesforce Documentation:\n\n")
		for i, chunk := range chunks {
			if i >= 2 {
				break
			}
			fmt.Fprintf(&sb, "**%d. From %s:**\n%s\n\n",
				i+1, sourceName(chunk), excerpt(chunk.Text, excerptCharsMax))
		}
	}

	cited := chunks
	if len(cited) > toolSourcesMax {
		cited = cited[:toolSourcesMax]
	}

	return &Result{
		Answer:         sb.String(),
		Sources:        sourceNames(cited),
		SourceMetadata: sourceMetadata(cited),
		ToolUsed:       label,
		Intent:         it.String(),
	}, nil
}

func (e *Engine) answerWithRetrieval(ctx context.Context, question string) (*Result, error) {
	retriever, err := e.getRetriever()
	if err != nil {
		return nil, err
	}
	chunks, err := retriever.SimilaritySearch(ctx, question, retrieveK)
	if err != nil {
		return nil, fmt.Errorf("retrieving documentation: %w", err)
	}

	if len(chunks) == 0 {
		return &Result{
			Answer:         noMatchAnswer,
			Sources:        []string{},
			SourceMetadata: []map[string]any{},
			Intent:         intent.GeneralRAG.String(),
		}, nil
	}

	var contextParts []string
	for i, chunk := range chunks {
		if i >= contextChunks {
			break
		}
		contextParts = append(contextParts, fmt.Sprintf("--- Source %d: %s ---\n%s",
			i+1, sourceName(chunk), excerpt(chunk.Text, contextCharsMax)))
	}

	prompt := fmt.Sprintf(answerPromptFormat, strings.Join(contextParts, "\n\n"), question)

	generator, err := e.getGenerator()
	if err != nil {
		return nil, err
	}

	answer, err := generator.Generate(ctx, prompt)
	if err != nil {
		e.logger.Error("generation failed", "error", err)
		answer = generationApology
	} else if e.onGeneration != nil {
		e.onGeneration(prompt, answer)
	}

	return &Result{
		Answer:         answer,
		Sources:        sourceNames(chunks),
		SourceMetadata: sourceMetadata(chunks),
		Intent:         intent.GeneralRAG.String(),
	}, nil
}

func (e *Engine) getRetriever() (Retriever, error) {
	e.retrieverOnce.Do(func() {
		e.retriever, e.retrieverErr = e.retrieverFn()
	})
	if e.retrieverErr != nil {
		return nil, fmt.Errorf("initializing retriever: %w", e.retrieverErr)
	}
	return e.retriever, nil
}

func (e *Engine) getGenerator() (Generator, error) {
	e.generatorOnce.Do(func() {
		e.generator, e.generatorErr = e.generatorFn()
	})
	if e.generatorErr != nil {
		return nil, fmt.Errorf("initializing generator: %w", e.generatorErr)
	}
	return e.generator, nil
}

func sourceName(chunk docs.Chunk) string {
	if v, ok := chunk.Meta["source_file"].(string); ok && v != "" {
		return filepath.Base(v)
	}
	return "unknown"
}

func sourceNames(chunks []docs.Chunk) []string {
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, sourceName(c))
	}
	return names
}

func sourceMetadata(chunks []docs.Chunk) []map[string]any {
	metas := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		metas = append(metas, c.Meta)
	}
	return metas
}

func excerpt(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "..."
}
