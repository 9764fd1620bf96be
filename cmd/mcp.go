package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/cklxx/codectx/internal/chunker"
	"github.com/cklxx/codectx/internal/retriever"
	"github.com/cklxx/codectx/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing code search tools over stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.DBPath()); os.IsNotExist(err) {
		return fmt.Errorf("index not found at %s\nRun 'codectx index' first to build the index", cfg.DBPath())
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcpserver.NewMCPServer("codectx", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchCodeTool(), makeSearchHandler(a.retriever))
	s.AddTool(lookupFunctionTool(), makeLookupHandler(a.store, chunker.KindFunction))
	s.AddTool(lookupClassTool(), makeLookupHandler(a.store, chunker.KindClass))
	s.AddTool(fileInfoTool(), makeFileInfoHandler(a.store))
	s.AddTool(relatedFilesTool(), makeRelatedFilesHandler(a.store))
	s.AddTool(indexStatsTool(), makeStatsHandler(a))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Search the indexed repository with hybrid keyword + semantic retrieval. Returns relevant code chunks with file paths and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
	)
}

func lookupFunctionTool() mcp.Tool {
	return mcp.NewTool("lookup_function",
		mcp.WithDescription("Look up a function by exact name and return its source, location, and docstring."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact function name"),
		),
	)
}

func lookupClassTool() mcp.Tool {
	return mcp.NewTool("lookup_class",
		mcp.WithDescription("Look up a class or type by exact name and return its source, location, and docstring."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact class name"),
		),
	)
}

func fileInfoTool() mcp.Tool {
	return mcp.NewTool("file_info",
		mcp.WithDescription("Get metadata for an indexed file: language, imports, exported symbols, and chunk count."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path as indexed (relative to the repository root)"),
		),
	)
}

func relatedFilesTool() mcp.Tool {
	return mcp.NewTool("related_files",
		mcp.WithDescription("Find files related to a given file through shared import/export symbols."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path as indexed (relative to the repository root)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of files to return (default 10)"),
		),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Summarize the index: file and chunk counts, languages, and last run."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeSearchHandler(rt *retriever.Retriever) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("limit", 10)
		if k <= 0 {
			k = 10
		}

		resp, err := rt.Search(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, resp)), nil
	}
}

func makeLookupHandler(st *store.Store, kind string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		chunks, err := st.ChunksByName(name, kind)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No %s named %q in the index.", kind, name)), nil
		}

		return mcp.NewToolResultText(formatChunks(chunks)), nil
	}
}

func makeFileInfoHandler(st *store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		info, err := st.GetFileInfo(path)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("file %q is not in the index; paths are relative to the repository root", path)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("file info failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatFileInfo(info)), nil
	}
}

func makeRelatedFilesHandler(st *store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		related, err := st.RelatedFiles(path, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("related files failed: %v", err)), nil
		}
		if len(related) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No files share symbols with %q.", path)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Files related to `%s`\n\n", path)
		for _, r := range related {
			fmt.Fprintf(&sb, "- **%s** (%d shared symbols)\n", r.Path, r.SharedSymbols)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeStatsHandler(a *app) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := a.store.GetStatistics()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Index statistics\n\n")
		fmt.Fprintf(&sb, "**Files:** %d  \n**Chunks:** %d\n", stats.TotalFiles, stats.TotalChunks)
		if n, err := a.vec.Size(); err == nil {
			fmt.Fprintf(&sb, "**Vectors:** %d\n", n)
		}

		if runAt, _ := a.store.GetMeta(store.MetaLastRunAt); runAt != "" {
			if ts, err := time.Parse(time.RFC3339, runAt); err == nil {
				fmt.Fprintf(&sb, "**Last indexed:** %s\n", ts.Format("2006-01-02 15:04:05 MST"))
			}
		}

		if len(stats.FilesByLanguage) > 0 {
			sb.WriteString("\n### Languages\n\n")
			for lang, n := range stats.FilesByLanguage {
				fmt.Fprintf(&sb, "- %s: %d files\n", lang, n)
			}
		}
		if len(stats.ChunksByType) > 0 {
			sb.WriteString("\n### Chunk kinds\n\n")
			for kind, n := range stats.ChunksByType {
				fmt.Fprintf(&sb, "- %s: %d\n", kind, n)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, resp *retriever.Response) string {
	if len(resp.Hits) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks, %s)\n\n", query, len(resp.Hits), resp.Method)

	for i, hit := range resp.Hits {
		c := hit.Chunk
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, c.FilePath)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**Name:** %s  \n**Lines:** %d–%d  \n**Score:** %.3f\n\n",
			c.Kind, c.Name, c.StartLine, c.EndLine, hit.Score)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", strings.ToLower(c.Language), c.Content)
	}

	return sb.String()
}

func formatChunks(chunks []store.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "### %s `%s` (%s:%d-%d)\n\n", c.Kind, c.Name, c.FilePath, c.StartLine, c.EndLine)
		if c.Doc != "" {
			fmt.Fprintf(&sb, "%s\n\n", c.Doc)
		}
		fmt.Fprintf(&sb, "```%s\n%s\n```\n", strings.ToLower(c.Language), c.Content)
		if i < len(chunks)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatFileInfo(info *store.FileInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", info.Path)
	fmt.Fprintf(&sb, "**Language:** %s  \n**Outcome:** %s  \n**Chunks:** %d  \n**Size:** %d bytes\n",
		info.Language, info.Outcome, info.ChunkCount, info.SizeBytes)

	if len(info.Imports) > 0 {
		sb.WriteString("\n### Imports\n\n")
		for _, imp := range info.Imports {
			fmt.Fprintf(&sb, "- `%s`\n", imp)
		}
	}
	if len(info.Exports) > 0 {
		sb.WriteString("\n### Exports\n\n")
		for _, exp := range info.Exports {
			fmt.Fprintf(&sb, "- `%s`\n", exp)
		}
	}
	return sb.String()
}
