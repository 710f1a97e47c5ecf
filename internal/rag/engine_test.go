package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/validate"
)

type fakeRetriever struct {
	chunks []docs.Chunk
	err    error
	gotK   int
}

func (f *fakeRetriever) SimilaritySearch(_ context.Context, _ string, k int) ([]docs.Chunk, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > k {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

type fakeGenerator struct {
	response  string
	err       error
	gotPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func docChunk(text, source string) docs.Chunk {
	return docs.Chunk{
		Text: text,
		Meta: map[string]any{"source_file": source, "page_number": 1},
	}
}

func newTestEngine(r Retriever, g Generator, opts ...Option) *Engine {
	return New(
		func() (Retriever, error) { return r, nil },
		func() (Generator, error) { return g, nil },
		opts...,
	)
}

func TestAnswer_GeneralPath(t *testing.T) {
	retriever := &fakeRetriever{chunks: []docs.Chunk{
		docChunk("chunk about triggers", "apex.pdf"),
		docChunk("chunk about limits", "limits.pdf"),
		docChunk("chunk about soql", "soql.pdf"),
		docChunk("chunk four", "four.pdf"),
		docChunk("chunk five", "five.pdf"),
	}}
	generator := &fakeGenerator{response: "Use bulkified triggers."}
	e := newTestEngine(retriever, generator)

	result, err := e.Answer(context.Background(), "How should I write triggers?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if result.Answer != "Use bulkified triggers." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Intent != "general_rag" {
		t.Errorf("Intent = %q", result.Intent)
	}
	if result.ToolUsed != "" {
		t.Errorf("ToolUsed = %q, want empty", result.ToolUsed)
	}
	if retriever.gotK != 5 {
		t.Errorf("retrieved k = %d, want 5", retriever.gotK)
	}
	// General path cites everything retrieved, not just the prompt context.
	if len(result.Sources) != 5 {
		t.Errorf("len(Sources) = %d, want 5", len(result.Sources))
	}
	if len(result.SourceMetadata) != 5 {
		t.Errorf("len(SourceMetadata) = %d, want 5", len(result.SourceMetadata))
	}

	// Prompt carries only the top three chunks, labeled by source.
	if !strings.Contains(generator.gotPrompt, "--- Source 1: apex.pdf ---") {
		t.Errorf("prompt missing first source label:\n%s", generator.gotPrompt)
	}
	if !strings.Contains(generator.gotPrompt, "--- Source 3: soql.pdf ---") {
		t.Errorf("prompt missing third source label:\n%s", generator.gotPrompt)
	}
	if strings.Contains(generator.gotPrompt, "four.pdf") {
		t.Errorf("prompt should not include the fourth chunk:\n%s", generator.gotPrompt)
	}
	if !strings.Contains(generator.gotPrompt, "How should I write triggers?") {
		t.Errorf("prompt missing the question:\n%s", generator.gotPrompt)
	}

	// The instruction block steers citation, limits/security coverage, and
	// architecture trade-off answers.
	for _, instruction := range []string{
		"Cite which Salesforce guide the information comes from",
		"Reference best practices and governor limits when applicable",
		"Mention security considerations when relevant",
		"If the question involves architecture decisions, provide pros/cons of different approaches",
	} {
		if !strings.Contains(generator.gotPrompt, instruction) {
			t.Errorf("prompt missing instruction %q:\n%s", instruction, generator.gotPrompt)
		}
	}
}

func TestAnswer_NoMatchesFixedAnswer(t *testing.T) {
	e := newTestEngine(&fakeRetriever{}, &fakeGenerator{response: "should not be called"})

	result, err := e.Answer(context.Background(), "Something entirely off topic")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.HasPrefix(result.Answer, "I couldn't find relevant information") {
		t.Errorf("Answer = %q, want the fixed no-match text", result.Answer)
	}
	// Empty, not nil, so the JSON payload carries [] rather than null.
	if result.Sources == nil || len(result.Sources) != 0 {
		t.Errorf("Sources = %#v, want empty non-nil slice", result.Sources)
	}
	if result.SourceMetadata == nil || len(result.SourceMetadata) != 0 {
		t.Errorf("SourceMetadata = %#v, want empty non-nil slice", result.SourceMetadata)
	}
}

func TestAnswer_GenerationFailureDegradesToApology(t *testing.T) {
	retriever := &fakeRetriever{chunks: []docs.Chunk{docChunk("some context", "apex.pdf")}}
	e := newTestEngine(retriever, &fakeGenerator{err: errors.New("model unavailable")})

	result, err := e.Answer(context.Background(), "How should I write triggers?")
	if err != nil {
		t.Fatalf("generation failure must not surface as an error: %v", err)
	}
	if !strings.HasPrefix(result.Answer, "I encountered an error processing your question") {
		t.Errorf("Answer = %q, want the apology text", result.Answer)
	}
	// Retrieved sources are still returned alongside the apology.
	if len(result.Sources) != 1 {
		t.Errorf("len(Sources) = %d, want 1", len(result.Sources))
	}
}

func TestAnswer_RetrievalFailurePropagates(t *testing.T) {
	e := newTestEngine(&fakeRetriever{err: errors.New("index offline")}, &fakeGenerator{})

	_, err := e.Answer(context.Background(), "How should I write triggers?")
	if err == nil || !strings.Contains(err.Error(), "index offline") {
		t.Errorf("err = %v, want retrieval failure", err)
	}
}

func TestAnswer_ValidationFailure(t *testing.T) {
	e := newTestEngine(&fakeRetriever{}, &fakeGenerator{})

	_, err := e.Answer(context.Background(), "")
	var vErr *validate.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("err = %v, want *validate.ValidationError", err)
	}
}

func TestAnswer_ToolPathLimits(t *testing.T) {
	retriever := &fakeRetriever{chunks: []docs.Chunk{
		docChunk(strings.Repeat("governor limit documentation text ", 20), "limits.pdf"),
		docChunk("second doc", "apex.pdf"),
		docChunk("third doc", "soql.pdf"),
		docChunk("fourth doc", "four.pdf"),
		docChunk("fifth doc", "five.pdf"),
	}}
	generator := &fakeGenerator{response: "should not be called"}
	e := newTestEngine(retriever, generator)

	result, err := e.Answer(context.Background(), `calculate usage {"soql_queries": 85}`)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if result.ToolUsed != "📊 Governor Limits Calculator" {
		t.Errorf("ToolUsed = %q", result.ToolUsed)
	}
	if result.Intent != "limits_calc" {
		t.Errorf("Intent = %q", result.Intent)
	}
	if !strings.Contains(result.Answer, "## 📊 Governor Limits Calculator Results:") {
		t.Errorf("answer missing tool header:\n%s", result.Answer)
	}
	if !strings.Contains(result.Answer, "85/100") {
		t.Errorf("answer missing tool report content:\n%s", result.Answer)
	}
	if !strings.Contains(result.Answer, "## 📚 Related Salesforce Documentation:") {
		t.Errorf("answer missing related docs section:\n%s", result.Answer)
	}
	if strings.Contains(result.Answer, "third doc") {
		t.Errorf("related docs should show at most two excerpts:\n%s", result.Answer)
	}
	// Tool path caps cited sources at three.
	if len(result.Sources) != 3 {
		t.Errorf("len(Sources) = %d, want 3", len(result.Sources))
	}
	if generator.gotPrompt != "" {
		t.Error("tool path must not call the generator")
	}
}

func TestAnswer_ToolPathExcerptTruncated(t *testing.T) {
	long := strings.Repeat("x", 400)
	retriever := &fakeRetriever{chunks: []docs.Chunk{docChunk(long, "limits.pdf")}}
	e := newTestEngine(retriever, &fakeGenerator{})

	result, err := e.Answer(context.Background(), `calculate usage {"soql_queries": 10}`)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.Contains(result.Answer, strings.Repeat("x", 300)+"...") {
		t.Errorf("excerpt not truncated at 300 chars:\n%s", result.Answer)
	}
	if strings.Contains(result.Answer, strings.Repeat("x", 301)) {
		t.Errorf("excerpt exceeds 300 chars:\n%s", result.Answer)
	}
}

func TestAnswer_ToolPathRetrievalFailurePropagates(t *testing.T) {
	e := newTestEngine(&fakeRetriever{err: errors.New("index offline")}, &fakeGenerator{})

	_, err := e.Answer(context.Background(), `calculate usage {"soql_queries": 10}`)
	if err == nil || !strings.Contains(err.Error(), "index offline") {
		t.Errorf("err = %v, want retrieval failure", err)
	}
}

func TestAnswer_GenerationObserver(t *testing.T) {
	retriever := &fakeRetriever{chunks: []docs.Chunk{docChunk("ctx", "apex.pdf")}}
	var observedPrompt, observedResponse string
	e := newTestEngine(retriever, &fakeGenerator{response: "generated answer"},
		WithGenerationObserver(func(prompt, response string) {
			observedPrompt, observedResponse = prompt, response
		}))

	if _, err := e.Answer(context.Background(), "How do triggers work?"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if observedResponse != "generated answer" {
		t.Errorf("observer response = %q", observedResponse)
	}
	if observedPrompt == "" {
		t.Error("observer prompt not recorded")
	}
}

func TestAnswer_LazyInitFailureSurfaces(t *testing.T) {
	e := New(
		func() (Retriever, error) { return nil, fmt.Errorf("index not built") },
		func() (Generator, error) { return &fakeGenerator{}, nil },
	)

	_, err := e.Answer(context.Background(), "How do triggers work?")
	if err == nil || !strings.Contains(err.Error(), "index not built") {
		t.Errorf("err = %v, want retriever init failure", err)
	}
}
