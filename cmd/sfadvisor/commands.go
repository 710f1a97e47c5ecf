package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/config"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/gemini"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/index"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/tools"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/validate"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build or rebuild the document index from the PDF directory",
	Long: `Build or rebuild the document index from the PDF directory.

By default the index is only rebuilt when the PDF directory has changed
since the last build. Use --force to rebuild unconditionally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := gemini.New(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.EmbedModel, cfg.Gemini.ChatModel)
		store := index.New(cfg.Index.Dir, client)
		defer store.Close()

		if !force && !store.NeedsRebuild(cfg.Documents.Dir) {
			printSuccess("Index is up to date")
			return nil
		}

		printStep("Processing PDFs in %s...", cfg.Documents.Dir)
		processor := docs.NewProcessor(cfg.Documents.ChunkSize, cfg.Documents.ChunkOverlap)
		chunks, err := processor.ProcessDir(cfg.Documents.Dir)
		if err != nil {
			return fmt.Errorf("processing documents: %w", err)
		}
		if len(chunks) == 0 {
			printWarning("No chunks produced; is %s empty?", cfg.Documents.Dir)
		}

		printStep("Embedding %d chunks...", len(chunks))
		if err := store.Rebuild(context.Background(), chunks, cfg.Documents.Dir); err != nil {
			return fmt.Errorf("building index: %w", err)
		}

		info, err := store.Info()
		if err != nil {
			return fmt.Errorf("reading index info: %w", err)
		}
		printSuccess("Indexed %d chunks into %s", info.Count, info.Directory)
		return nil
	},
}

func init() {
	ingestCmd.Flags().Bool("force", false, "rebuild even if the index is current")
}

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against the running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		session, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/query", map[string]string{
			"question":   question,
			"session_id": session,
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer   string   `json:"answer"`
			Sources  []string `json:"sources"`
			ToolUsed string   `json:"tool_used"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		if result.ToolUsed != "" {
			fmt.Printf("\n%s %s\n", tint(ansiBold, "Tool:"), result.ToolUsed)
		}
		if len(result.Sources) > 0 {
			fmt.Printf("%s %s\n", tint(ansiBold, "Sources:"), strings.Join(result.Sources, ", "))
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().String("session", "cli", "session identifier for rate limiting")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show advisor system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/status")
		if err != nil {
			printStatus("Server", "stopped")
			printStatus("PDF dir", "%s", cfg.Documents.Dir)
			printStatus("Index dir", "%s", cfg.Index.Dir)
			return nil
		}

		var status struct {
			Index struct {
				Count             int    `json:"count"`
				FingerprintPrefix string `json:"fingerprint_prefix"`
				Directory         string `json:"directory"`
			} `json:"index"`
			Usage struct {
				QueryCount    int     `json:"query_count"`
				ToolCallCount int     `json:"tool_call_count"`
				ErrorCount    int     `json:"error_count"`
				EstimatedCost float64 `json:"estimated_cost_usd"`
			} `json:"usage"`
		}
		if err := decodeJSON(resp, &status); err != nil {
			return err
		}

		printStatus("Server", "running on port %d", cfg.Server.Port)
		printStatus("Indexed chunks", "%d", status.Index.Count)
		printStatus("Fingerprint", "%s", status.Index.FingerprintPrefix)
		printStatus("Index dir", "%s", status.Index.Directory)
		printStatus("Queries", "%d (%d tool calls, %d errors)",
			status.Usage.QueryCount, status.Usage.ToolCallCount, status.Usage.ErrorCount)
		printStatus("Est. cost", "$%.4f", status.Usage.EstimatedCost)
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or export conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var items []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			ToolUsed  string `json:"tool_used"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, item := range items {
			question := item.Question
			if len(question) > 80 {
				question = question[:80] + "..."
			}
			line := fmt.Sprintf("%s  %s  %s",
				tint(ansiCyan, item.ID[:8]), item.CreatedAt, question)
			if item.ToolUsed != "" {
				line += "  " + tint(ansiYellow, "[tool]")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conversation history as JSON, CSV, or Markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/history/export?format=" + format)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		if _, err := io.Copy(writer, resp.Body); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		if output != "" {
			printSuccess("History exported to %s", output)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	historyExportCmd.Flags().String("format", "json", "export format: json, csv, or markdown")
	historyExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	historyCmd.AddCommand(historyExportCmd)
}

// --- local analysis tools ---

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review Apex code for governor limit violations (reads stdin without a file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := readInput(args)
		if err != nil {
			return err
		}
		cleaned, err := validate.Code(code)
		if err != nil {
			return err
		}
		fmt.Println(tools.ReviewApexCode(cleaned))
		return nil
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize <query>",
	Short: "Analyze a SOQL query for performance issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := validate.SOQL(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(tools.OptimizeSOQLQuery(query))
		return nil
	},
}

var limitsCmd = &cobra.Command{
	Use:   "limits <operations>",
	Short: "Compare operation counts against governor limits",
	Long: `Compare operation counts against governor limits.

Examples:
  sfadvisor limits '{"soql_queries": 85, "dml_statements": 140}'
  sfadvisor limits "50 SOQL queries and 75 DML statements"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(tools.CalculateGovernorLimits(strings.Join(args, " ")))
		return nil
	},
}

func readInput(args []string) (string, error) {
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
