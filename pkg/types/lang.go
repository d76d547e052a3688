package types

// Lang is a configured dictionary language
type Lang struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Types     map[string]string `json:"types"`
	Tokenizer string            `json:"tokenizer"`
}

// LangMap maps language ids to languages
type LangMap map[string]Lang

// HasType reports whether the language declares the relation type
func (l Lang) HasType(t string) bool {
	_, ok := l.Types[t]
	return ok
}

// Dict is a from -> to language pair
type Dict struct {
	From Lang `json:"from"`
	To   Lang `json:"to"`
}
