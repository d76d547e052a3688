package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"
)

// symbolPOS is the IPA part of speech for punctuation and symbols
const symbolPOS = "記号"

// Morphological segments Japanese text with kagome and the IPA dictionary,
// indexing each morpheme by its dictionary base form. The dictionary is
// large so it is loaded on first use.
type Morphological struct {
	once sync.Once
	t    *kagome.Tokenizer
	err  error
}

// NewMorphological returns a lazily initialized IPA tokenizer
func NewMorphological() *Morphological {
	return &Morphological{}
}

func (m *Morphological) load() (*kagome.Tokenizer, error) {
	m.once.Do(func() {
		m.t, m.err = kagome.New(ipa.Dict(), kagome.OmitBosEos())
		if m.err != nil {
			m.err = fmt.Errorf("failed to load ipa dictionary: %w", m.err)
		}
	})
	return m.t, m.err
}

// Tokenize implements Tokenizer
func (m *Morphological) Tokenize(text, _ string) ([]string, error) {
	return m.terms(text)
}

// ToQuery implements Tokenizer
func (m *Morphological) ToQuery(text, _ string) (string, error) {
	terms, err := m.terms(text)
	if err != nil {
		return "", err
	}
	return QuoteTerms(terms), nil
}

func (m *Morphological) terms(text string) ([]string, error) {
	t, err := m.load()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, tok := range t.Tokenize(text) {
		if tok.Class == kagome.DUMMY || strings.TrimSpace(tok.Surface) == "" {
			continue
		}
		features := tok.Features()
		if len(features) > 0 && features[0] == symbolPOS {
			continue
		}
		base := tok.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		out = append(out, strings.ToLower(base))
	}
	return out, nil
}
