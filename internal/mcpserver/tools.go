package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

func askDocsTool() mcp.Tool {
	return mcp.NewTool("ask_docs",
		mcp.WithDescription("Answer a question from the indexed ClickUp docs. The answer is graded for grounding and relevance and retried until it converges."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question in natural language"),
		),
		mcp.WithBoolean("quick",
			mcp.Description("Single-shot answer without the grading loop (default: false)"),
		),
	)
}

func searchDocsTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Return the nearest indexed chunks for a query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: retrieval_k, max: 50)"),
		),
	)
}

func ingestClickUpTool() mcp.Tool {
	return mcp.NewTool("ingest_clickup",
		mcp.WithDescription("Fetch a ClickUp doc by URL and add its new chunks to the index"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Doc URL, e.g. https://app.clickup.com/{workspace}/v/dc/{doc}[/{page}]"),
		),
	)
}
