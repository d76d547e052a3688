// Package tokenizer turns dictionary text into search tokens and FTS5 queries.
//
// Every strategy implements two operations that must agree on normalization:
// Tokenize builds the tokens stored with an entry, ToQuery builds the match
// query for a search.
//
// # Identities
//
//	simple            lowercase + whitespace split (the fallback)
//	default:<name>    snowball stemmer, e.g. default:english
//	kagome:ipa        Japanese morphological analysis
//	lua:<file>        user script loaded from the tokenizer directory
//
// # Scripts
//
// A script defines two global functions:
//
//	function tokenize(text, lang)
//	    local out = {}
//	    for _, w in ipairs(words(lowercase(text))) do
//	        table.insert(out, w)
//	    end
//	    return out
//	end
//
//	function to_query(text, lang)
//	    return table.concat(tokenize(text, lang), " ")
//	end
//
// Scripts run in a sandbox with the base, table, string and math libraries and
// the helpers lowercase, trim, split and words. Calls into one script are
// serialized.
package tokenizer
