package tokenizer

import (
	"fmt"
	"strings"

	"github.com/dshills/dictpress/pkg/types"
)

// Tokenizer converts text into search tokens and into FTS5 match queries.
// Tokenize and ToQuery must normalize identically or indexed tokens will
// never match the queries built for them.
type Tokenizer interface {
	// Tokenize returns the tokens stored for text at write time
	Tokenize(text, lang string) ([]string, error)
	// ToQuery returns an FTS5 query string for text
	ToQuery(text, lang string) (string, error)
}

// Simple lowercases and splits on whitespace
type Simple struct{}

// Tokenize implements Tokenizer
func (Simple) Tokenize(text, _ string) ([]string, error) {
	return lowerFields(text), nil
}

// ToQuery implements Tokenizer
func (Simple) ToQuery(text, _ string) (string, error) {
	return QuoteTerms(lowerFields(text)), nil
}

func lowerFields(text string) []string {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// QuoteTerms joins terms into an implicit-AND FTS5 query. Each term is
// quoted as an FTS5 string so punctuation inside a term cannot break the
// query syntax.
func QuoteTerms(terms []string) string {
	var b strings.Builder
	for _, t := range terms {
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(t, `"`, `""`))
		b.WriteByte('"')
	}
	return b.String()
}

// Join tokenizes content items as one text and returns the space-joined
// tokens stored in an entry's tokens column.
func Join(tk Tokenizer, content []string, lang string) (string, error) {
	tokens, err := tk.Tokenize(strings.Join(content, " "), lang)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrTokenizer, err)
	}
	return strings.Join(tokens, " "), nil
}
