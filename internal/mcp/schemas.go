package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var adminProperty = map[string]interface{}{
	"type":        "boolean",
	"description": "If true, bypass the result cache and include internal ids",
	"default":     false,
}

var stringList = map[string]interface{}{
	"type": "string",
}

// searchDictionaryTool returns the tool definition for search_dictionary
func searchDictionaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_dictionary",
		Description: "Search dictionary headwords in one language and return their related entries (translations, synonyms, definitions)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Word or phrase to look up",
				},
				"from_lang": map[string]interface{}{
					"type":        "string",
					"description": "Language id of the headwords to search",
				},
				"to_lang": map[string]interface{}{
					"type":        "string",
					"description": "Language id of related entries, or * for all languages",
					"default":     "*",
				},
				"types": map[string]interface{}{
					"type":        "array",
					"description": "Only include relations of these types (e.g. noun, verb)",
					"items":       stringList,
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Only include relations whose tags or target entry tags match",
					"items":       stringList,
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Entry status to search (admin only)",
					"enum":        []string{"enabled", "disabled", "pending"},
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number starting at 1",
					"default":     1,
					"minimum":     1,
				},
				"per_page": map[string]interface{}{
					"type":        "integer",
					"description": "Results per page (capped by the server)",
					"minimum":     1,
				},
				"max_relations": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum relations per type per entry. Public callers can only lower the configured limit (0 for the configured limit)",
					"minimum":     0,
				},
				"max_content_items": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum content items of each related entry. Public callers can only lower the configured limit (0 for the configured limit)",
					"minimum":     0,
				},
				"admin": adminProperty,
			},
			Required: []string{"query", "from_lang"},
		},
	}
}

// suggestWordsTool returns the tool definition for suggest_words
func suggestWordsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "suggest_words",
		Description: "Complete a partial word from the dictionary vocabulary",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"lang": map[string]interface{}{
					"type":        "string",
					"description": "Language id",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Prefix to complete",
				},
			},
			Required: []string{"lang", "query"},
		},
	}
}

// getEntryTool returns the tool definition for get_entry
func getEntryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_entry",
		Description: "Fetch one dictionary entry with all of its relations by guid (or id for admin callers)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"guid": map[string]interface{}{
					"type":        "string",
					"description": "Entry GUID",
				},
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Entry id (admin only)",
				},
				"admin": adminProperty,
			},
		},
	}
}

// getGlossaryTool returns the tool definition for get_glossary
func getGlossaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_glossary",
		Description: "List the initials of a language, or the headwords starting with one initial",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"lang": map[string]interface{}{
					"type":        "string",
					"description": "Language id",
				},
				"initial": map[string]interface{}{
					"type":        "string",
					"description": "Initial to list; omit to list the initials",
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number starting at 1",
					"default":     1,
					"minimum":     1,
				},
				"per_page": map[string]interface{}{
					"type":        "integer",
					"description": "Words per page",
					"minimum":     1,
				},
			},
			Required: []string{"lang"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report configured languages and dictionaries with entry and relation counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// rebuildSuggestionsTool returns the tool definition for rebuild_suggestions
func rebuildSuggestionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_suggestions",
		Description: "Reload the in-memory suggestion index from the dictionary",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
