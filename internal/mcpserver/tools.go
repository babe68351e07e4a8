package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

var askCottagesTool = mcp.NewTool("ask_cottages",
	mcp.WithDescription("Answer a guest question about the holiday cottages using the indexed cottage descriptions. Returns the answer and the records it was based on."),
	mcp.WithTitleAnnotation("Ask about cottages"),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The guest's question, e.g. \"Which cottages allow dogs?\""),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Number of cottage records to retrieve (default: 5, max: 20)"),
		mcp.Min(0),
	),
)

var searchCottagesTool = mcp.NewTool("search_cottages",
	mcp.WithDescription("Semantic search over the indexed cottage records without generating an answer. Returns the matching record ids, titles, scores and text."),
	mcp.WithTitleAnnotation("Search cottages"),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Free text to search for"),
	),
	mcp.WithString("cottage",
		mcp.Description("Restrict the search to one cottage by name, e.g. \"Acer Cottage\""),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of records to return (default: 5, max: 20)"),
		mcp.Min(0),
	),
)
