package tokenizer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/dictpress/pkg/types"
)

// Identity prefixes
const (
	PrefixDefault = "default:"
	PrefixLua     = "lua:"
	PrefixKagome  = "kagome:"

	// SimpleID is the bare identity of the whitespace fallback tokenizer
	SimpleID = "simple"
	// KagomeIPA segments Japanese with the IPA dictionary
	KagomeIPA = PrefixKagome + "ipa"
)

// Registry maps tokenizer identities to tokenizers. It is populated by New
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	tokenizers map[string]Tokenizer
	logger     *slog.Logger
	scriptDir  string
}

// Option configures a Registry
type Option func(*Registry) error

// WithLogger sets the logger used to report fallbacks and script failures
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithScriptDir loads every *.lua file in dir as lua:<filename>
func WithScriptDir(dir string) Option {
	return func(r *Registry) error {
		r.scriptDir = dir
		return nil
	}
}

// New builds a registry holding the simple tokenizer, every built-in
// stemmer, the kagome tokenizer and any valid scripts.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		tokenizers: make(map[string]Tokenizer),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.tokenizers[SimpleID] = Simple{}
	for _, name := range StemmerNames() {
		s, _ := NewStemming(name)
		r.tokenizers[PrefixDefault+name] = s
	}
	r.tokenizers[KagomeIPA] = NewMorphological()

	if r.scriptDir != "" {
		if err := r.loadScripts(r.scriptDir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// loadScripts registers each valid script. A broken script is logged and
// skipped; only an unreadable directory is an error.
func (r *Registry) loadScripts(dir string) error {
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		r.logger.Warn("tokenizer script directory not found", "dir", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read tokenizer directory: %w", err)
	}

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".lua" {
			continue
		}
		id := PrefixLua + f.Name()
		s, err := LoadScript(id, filepath.Join(dir, f.Name()))
		if err != nil {
			r.logger.Error("excluding tokenizer script", "tokenizer", id, "error", err)
			continue
		}
		r.tokenizers[id] = s
		r.logger.Info("loaded tokenizer script", "tokenizer", id)
	}
	return nil
}

// Get returns the tokenizer registered under id
func (r *Registry) Get(id string) (Tokenizer, bool) {
	tk, ok := r.tokenizers[id]
	return tk, ok
}

// IDs returns every registered identity in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tokenizers))
	for id := range r.tokenizers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the tokenizer for id and the identity actually used.
// Empty, malformed and unknown identities fall back to the simple tokenizer.
func (r *Registry) Resolve(id string) (Tokenizer, string) {
	if id == "" || id == SimpleID {
		return r.tokenizers[SimpleID], SimpleID
	}
	if !hasKnownPrefix(id) {
		r.logger.Error("invalid tokenizer identity, using fallback", "tokenizer", id, "fallback", SimpleID)
		return r.tokenizers[SimpleID], SimpleID
	}
	if tk, ok := r.tokenizers[id]; ok {
		return tk, id
	}
	r.logger.Error("tokenizer not found, using fallback", "tokenizer", id, "fallback", SimpleID)
	return r.tokenizers[SimpleID], SimpleID
}

// Bind resolves the tokenizer of every language. The returned languages
// carry the identity actually in use.
func (r *Registry) Bind(langs types.LangMap) (types.LangMap, map[string]Tokenizer) {
	out := make(types.LangMap, len(langs))
	bound := make(map[string]Tokenizer, len(langs))
	for id, lang := range langs {
		tk, used := r.Resolve(lang.Tokenizer)
		lang.ID = id
		lang.Tokenizer = used
		out[id] = lang
		bound[id] = tk
		r.logger.Info("language", "lang", id, "tokenizer", used)
	}
	return out, bound
}

// Close releases scripted tokenizers
func (r *Registry) Close() {
	for _, tk := range r.tokenizers {
		if s, ok := tk.(*Scripted); ok {
			s.Close()
		}
	}
}

func hasKnownPrefix(id string) bool {
	for _, p := range []string{PrefixDefault, PrefixLua, PrefixKagome} {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
