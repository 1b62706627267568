package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thywilljoshua/fincontext/internal/workflow"
)

// ToolName is the MCP tool that extracts page context.
const ToolName = "extract_page_context"

// pageContextResult is what the tool returns: the parsed page plus the flat
// content and image lists agents usually want.
type pageContextResult struct {
	Page    any      `json:"page"`
	Content []any    `json:"page_content"`
	Images  []string `json:"page_images"`
}

// RegisterMCP adds the page context tool to srv.
func RegisterMCP(srv *mcp.Server, run Runner) {
	tool := &mcp.Tool{
		Name: ToolName,
		Description: "Extract structured context from one page of a financial report PDF: " +
			"typed sections (text, table, graph), a refined bounding box per section and the content inside it.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pdf_url":               map[string]any{"type": "string", "description": "URL or path of the PDF"},
				"page_number":           map[string]any{"type": "integer", "minimum": 0, "description": "Zero-based page index"},
				"overwrite_cache":       map[string]any{"type": "boolean", "description": "Recompute even if cached"},
				"n_max_bbox_iterations": map[string]any{"type": "integer", "minimum": 1, "description": "Inspector calls per section"},
			},
			"required": []string{"pdf_url", "page_number"},
		},
	}
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in workflow.Request
		if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		page, err := run.Run(ctx, in)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		content, images := page.PageContent()
		data, err := json.Marshal(pageContextResult{Page: page, Content: content, Images: images})
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}
