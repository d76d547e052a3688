// Package mcp implements the Model Context Protocol (MCP) server for dictpress.
//
// The server exposes the dictionary to MCP clients over stdio:
//   - search_dictionary: search headwords and return their related entries
//   - suggest_words: complete a partial word
//   - get_entry: fetch one entry with all of its relations
//   - get_glossary: list a language's initials or the words under one initial
//   - get_status: configured languages, dictionaries and counts
//   - rebuild_suggestions: reload the suggestion index from the store
//
// It is started by the serve command:
//
//	dictpress serve --config config.yml
//
// stdout carries the protocol, so all logging goes to stderr.
//
// # Public and admin calls
//
// Calls are public unless they pass "admin": true. Public results come from
// and go to the result cache, only enabled entries are visible and internal
// ids are zeroed so entries are addressed by guid. Admin calls bypass the
// cache, may select a status and see ids and parent entries.
//
// # Tool: search_dictionary
//
//	Request:
//	{
//	  "query": "book",
//	  "from_lang": "english",
//	  "to_lang": "italian",
//	  "types": ["noun"],
//	  "max_relations": 5
//	}
//
//	Response:
//	{
//	  "entries": [
//	    {
//	      "guid": "5b6d…",
//	      "content": ["book"],
//	      "lang": "english",
//	      "relations": [{"types": ["noun"], "entry": {"content": ["libro"], "lang": "italian"}}],
//	      "total_relations": 1
//	    }
//	  ],
//	  "page": 1, "per_page": 10, "total": 1, "total_pages": 1
//	}
//
// total_relations counts matching relations before the per-type limit.
//
// # Error Handling
//
// Tool errors are returned as MCPError values with JSON-RPC codes:
//
//	-32602  invalid parameters (bad input, unknown language or status)
//	-32603  internal error (store failure)
//	-32001  entry not found
//	-32002  suggestion rebuild already running
//	-32003  tokenizer failure
//	-32004  empty query
package mcp
