package searcher

import (
	"strings"
	"unicode"
)

// CleanQuery replaces ASCII punctuation other than the apostrophe with
// spaces and collapses whitespace
func CleanQuery(q string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\'' {
			return r
		}
		if r <= unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			return ' '
		}
		return r
	}, q)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Paginate normalizes page and perPage and returns the row offset.
// perPage defaults to def and is capped at max.
func Paginate(page, perPage, max, def int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = def
	} else if max > 0 && perPage > max {
		perPage = max
	}
	return page, perPage, (page - 1) * perPage
}

// TotalPages returns the number of pages needed for total rows
func TotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
