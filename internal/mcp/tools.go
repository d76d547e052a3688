package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/dictpress/internal/indexer"
	"github.com/dshills/dictpress/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound          = -32001 // Entry does not exist or is not public
	ErrorCodeRebuildInProgress = -32002 // Another suggestion rebuild is already running
	ErrorCodeTokenizer         = -32003 // The language tokenizer failed on the query
	ErrorCodeEmptyQuery        = -32004 // Query parameter is empty
)

// handleSearchDictionary handles the search_dictionary tool invocation
func (s *Server) handleSearchDictionary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	fromLang, ok := args["from_lang"].(string)
	if !ok || fromLang == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "from_lang parameter is required", map[string]interface{}{
			"param":  "from_lang",
			"reason": "missing or empty",
		})
	}

	admin := getBoolDefault(args, "admin", false)
	q := types.SearchQuery{
		Query:           query,
		FromLang:        fromLang,
		ToLang:          getStringDefault(args, "to_lang", ""),
		Types:           getStringSlice(args, "types"),
		Tags:            getStringSlice(args, "tags"),
		Page:            getIntDefault(args, "page", 1),
		PerPage:         getIntDefault(args, "per_page", 0),
		MaxRelations:    getIntDefault(args, "max_relations", 0),
		MaxContentItems: getIntDefault(args, "max_content_items", 0),
	}
	if admin {
		q.Status = getStringDefault(args, "status", "")
	}

	res, err := s.searcher.Search(ctx, q, admin)
	if err != nil {
		return nil, toMCPError("search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleSuggestWords handles the suggest_words tool invocation
func (s *Server) handleSuggestWords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	lang, ok := args["lang"].(string)
	if !ok || lang == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "lang parameter is required", map[string]interface{}{
			"param":  "lang",
			"reason": "missing or empty",
		})
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	suggestions, err := s.searcher.Suggestions(ctx, lang, query)
	if err != nil {
		return nil, toMCPError("suggestions failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"suggestions": suggestions,
	})), nil
}

// handleGetEntry handles the get_entry tool invocation
func (s *Server) handleGetEntry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	admin := getBoolDefault(args, "admin", false)
	guid := getStringDefault(args, "guid", "")
	var id int64
	if admin {
		id = int64(getIntDefault(args, "id", 0))
	}
	if guid == "" && id <= 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "guid parameter is required", map[string]interface{}{
			"param":  "guid",
			"reason": "missing or empty",
		})
	}

	entry, err := s.searcher.Entry(ctx, id, guid, admin)
	if err != nil {
		return nil, toMCPError("failed to get entry", err)
	}

	response := map[string]interface{}{
		"entry": entry,
	}
	if admin {
		parents, err := s.storage.GetParentEntries(ctx, entry.ID)
		if err != nil {
			return nil, toMCPError("failed to get parent entries", fmt.Errorf("%w: %w", types.ErrBackend, err))
		}
		if parents == nil {
			parents = []types.Entry{}
		}
		response["parents"] = parents
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetGlossary handles the get_glossary tool invocation
func (s *Server) handleGetGlossary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	lang, ok := args["lang"].(string)
	if !ok || lang == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "lang parameter is required", map[string]interface{}{
			"param":  "lang",
			"reason": "missing or empty",
		})
	}

	initial := getStringDefault(args, "initial", "")
	if initial == "" {
		initials, err := s.searcher.Initials(ctx, lang)
		if err != nil {
			return nil, toMCPError("failed to get initials", err)
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"lang":     lang,
			"initials": initials,
		})), nil
	}

	res, err := s.searcher.Glossary(ctx, lang, initial,
		getIntDefault(args, "page", 1), getIntDefault(args, "per_page", 0))
	if err != nil {
		return nil, toMCPError("failed to get glossary", err)
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.GetStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	langs := s.searcher.Langs()
	ids := make([]string, 0, len(langs))
	for id := range langs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	languages := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		l := langs[id]
		languages = append(languages, map[string]interface{}{
			"id":        id,
			"name":      l.Name,
			"tokenizer": l.Tokenizer,
			"types":     l.Types,
			"entries":   stats.Languages[id],
		})
	}

	dicts := make([][]string, 0, len(s.dicts))
	for _, d := range s.dicts {
		dicts = append(dicts, []string{d.From.ID, d.To.ID})
	}

	response := map[string]interface{}{
		"version":   ServerVersion,
		"languages": languages,
		"dicts":     dicts,
		"statistics": map[string]interface{}{
			"entries":   stats.Entries,
			"relations": stats.Relations,
			"pending":   stats.Pending,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildSuggestions handles the rebuild_suggestions tool invocation
func (s *Server) handleRebuildSuggestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.indexer == nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexer is not configured", nil)
	}

	err := s.indexer.RebuildSuggestions(ctx)
	if errors.Is(err, indexer.ErrRebuildInProgress) {
		return nil, newMCPError(ErrorCodeRebuildInProgress, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "rebuild failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"rebuilt": true,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// toMCPError maps an engine error to its MCP error code
func toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrValidation):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, types.ErrTokenizer):
		code = ErrorCodeTokenizer
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
