package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/pipeline"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/tools"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/validate"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Answer AnswerFunc
	Index  IndexInfoFunc
}

// AnswerFunc runs the full query pipeline for one question.
type AnswerFunc func(ctx context.Context, req pipeline.Request) (answer string, err error)

// IndexInfoFunc reports the current index state as JSON-marshalable data.
type IndexInfoFunc func() (any, error)

// NewMCPServer creates an MCP server with the advisor tools and the index
// status resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"sfadvisor",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sfadvisor — Salesforce architecture and best practices advisor backed by local documentation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_docs",
			mcp.WithDescription("Ask a question about Salesforce development, architecture, or best practices. Answers are grounded in indexed Salesforce documentation."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskDocs(deps),
	)

	s.AddTool(
		mcp.NewTool("review_apex",
			mcp.WithDescription("Review Apex code for governor limit violations and common anti-patterns."),
			mcp.WithString("code", mcp.Description("Apex source code to review"), mcp.Required()),
		),
		mcpReviewApex(),
	)

	s.AddTool(
		mcp.NewTool("optimize_soql",
			mcp.WithDescription("Analyze a SOQL query for performance issues and suggest optimizations."),
			mcp.WithString("query", mcp.Description("SOQL query to analyze"), mcp.Required()),
		),
		mcpOptimizeSOQL(),
	)

	s.AddTool(
		mcp.NewTool("calculate_limits",
			mcp.WithDescription("Compare operation counts against Salesforce governor limits. Accepts a JSON object like {\"soql_queries\": 50, \"dml_statements\": 75} or a plain-text description."),
			mcp.WithString("operations", mcp.Description("Operation usage as JSON or free text"), mcp.Required()),
		),
		mcpCalculateLimits(),
	)

	s.AddResource(
		mcp.NewResource(
			"advisor://index",
			"Documentation Index Status",
			mcp.WithResourceDescription("Current vector index state as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceIndex(deps),
	)

	return s
}

func mcpAskDocs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		answer, err := deps.Answer(ctx, pipeline.Request{SessionID: "mcp", Question: question})
		if err != nil {
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpReviewApex() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := req.RequireString("code")
		if err != nil {
			return mcpError("code is required"), nil
		}
		cleaned, err := validate.Code(code)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(tools.ReviewApexCode(cleaned)), nil
	}
}

func mcpOptimizeSOQL() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		cleaned, err := validate.SOQL(query)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(tools.OptimizeSOQLQuery(cleaned)), nil
	}
}

func mcpCalculateLimits() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		operations, err := req.RequireString("operations")
		if err != nil {
			return mcpError("operations is required"), nil
		}
		return mcpText(tools.CalculateGovernorLimits(operations)), nil
	}
}

func mcpResourceIndex(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		info, err := deps.Index()
		if err != nil {
			return nil, fmt.Errorf("reading index info: %w", err)
		}
		b, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("marshaling index info: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
