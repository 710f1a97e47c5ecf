// Package pipeline composes the query path from small middleware stages,
// so rate limiting and usage tracking wrap the answering core without the
// core knowing about either.
package pipeline

import (
	"context"
	"time"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/rag"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/ratelimit"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/track"
)

// Request carries one question through the stages.
type Request struct {
	SessionID string
	Question  string
}

// Handler answers one request.
type Handler func(ctx context.Context, req Request) (*rag.Result, error)

// Stage wraps a Handler with extra behavior.
type Stage func(Handler) Handler

// Chain applies stages so the first listed stage is outermost.
func Chain(h Handler, stages ...Stage) Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i](h)
	}
	return h
}

// RateLimit rejects requests exceeding the session's query quota before
// any retrieval or generation work happens.
func RateLimit(limiter *ratelimit.Limiter) Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (*rag.Result, error) {
			session := req.SessionID
			if session == "" {
				session = "default"
			}
			if err := limiter.Allow(session, ratelimit.KindQuery); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}

// Tracking records timing and outcome for every request, including failed
// ones.
func Tracking(tracker *track.Tracker) Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (*rag.Result, error) {
			started := time.Now()
			result, err := next(ctx, req)

			toolUsed := ""
			if result != nil {
				toolUsed = result.ToolUsed
			}
			tracker.RecordQuery(time.Since(started), toolUsed, err)
			return result, err
		}
	}
}
