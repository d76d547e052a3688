package tokenizer

import (
	"sort"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/danish"
	"github.com/blevesearch/snowballstem/dutch"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/finnish"
	"github.com/blevesearch/snowballstem/french"
	"github.com/blevesearch/snowballstem/german"
	"github.com/blevesearch/snowballstem/hungarian"
	"github.com/blevesearch/snowballstem/italian"
	"github.com/blevesearch/snowballstem/norwegian"
	"github.com/blevesearch/snowballstem/portuguese"
	"github.com/blevesearch/snowballstem/romanian"
	"github.com/blevesearch/snowballstem/russian"
	"github.com/blevesearch/snowballstem/spanish"
	"github.com/blevesearch/snowballstem/swedish"
	"github.com/blevesearch/snowballstem/turkish"
)

// stemFunc is the signature shared by the generated snowball stemmers
type stemFunc func(env *snowballstem.Env) bool

var stemmers = map[string]stemFunc{
	"danish":     danish.Stem,
	"dutch":      dutch.Stem,
	"english":    english.Stem,
	"finnish":    finnish.Stem,
	"french":     french.Stem,
	"german":     german.Stem,
	"hungarian":  hungarian.Stem,
	"italian":    italian.Stem,
	"norwegian":  norwegian.Stem,
	"portuguese": portuguese.Stem,
	"romanian":   romanian.Stem,
	"russian":    russian.Stem,
	"spanish":    spanish.Stem,
	"swedish":    swedish.Stem,
	"turkish":    turkish.Stem,
}

// StemmerNames returns the built-in stemmer names in sorted order
func StemmerNames() []string {
	names := make([]string, 0, len(stemmers))
	for n := range stemmers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stemming lowercases each whitespace-delimited term and reduces it to its
// snowball stem. The generated stemmers keep no state between calls so a
// Stemming tokenizer is safe for concurrent use.
type Stemming struct {
	name string
	stem stemFunc
}

// NewStemming returns the stemming tokenizer for a snowball language name
func NewStemming(name string) (*Stemming, bool) {
	fn, ok := stemmers[name]
	if !ok {
		return nil, false
	}
	return &Stemming{name: name, stem: fn}, true
}

// Name returns the snowball language name
func (s *Stemming) Name() string {
	return s.name
}

// Tokenize implements Tokenizer
func (s *Stemming) Tokenize(text, _ string) ([]string, error) {
	return s.terms(text), nil
}

// ToQuery implements Tokenizer
func (s *Stemming) ToQuery(text, _ string) (string, error) {
	return QuoteTerms(s.terms(text)), nil
}

func (s *Stemming) terms(text string) []string {
	terms := lowerFields(text)
	for i, t := range terms {
		env := snowballstem.NewEnv(t)
		s.stem(env)
		terms[i] = env.Current()
	}
	return terms
}
