package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// canary is tokenized once when a script loads to prove both entry points work
const canary = "Dictionary canary"

var (
	// ErrScriptFunction is returned when a script lacks tokenize or to_query
	ErrScriptFunction = errors.New("script must define tokenize(text, lang) and to_query(text, lang)")
	// ErrScriptResult is returned when a script returns a value of the wrong type
	ErrScriptResult = errors.New("unexpected script return value")
)

// Scripted runs a user supplied Lua script. A Lua state is not reentrant so
// every call holds the tokenizer's mutex.
type Scripted struct {
	name string

	mu    sync.Mutex
	state *lua.LState
}

// LoadScript compiles the Lua file at path and validates it by calling both
// tokenize and to_query with a canary string.
func LoadScript(name, path string) (*Scripted, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	L, err := newSandbox()
	if err != nil {
		return nil, err
	}

	if err := L.DoString(string(code)); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load script %s: %w", name, err)
	}

	for _, fn := range []string{"tokenize", "to_query"} {
		if L.GetGlobal(fn).Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("%s: %w", name, ErrScriptFunction)
		}
	}

	s := &Scripted{name: name, state: L}
	if _, err := s.Tokenize(canary, ""); err != nil {
		s.Close()
		return nil, fmt.Errorf("script %s failed tokenize check: %w", name, err)
	}
	if _, err := s.ToQuery(canary, ""); err != nil {
		s.Close()
		return nil, fmt.Errorf("script %s failed to_query check: %w", name, err)
	}
	return s, nil
}

// Name returns the script's registry name
func (s *Scripted) Name() string {
	return s.name
}

// Tokenize implements Tokenizer
func (s *Scripted) Tokenize(text, lang string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret, err := s.call("tokenize", text, lang)
	if err != nil {
		return nil, err
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: tokenize returned %s, want table", ErrScriptResult, ret.Type())
	}

	n := tbl.Len()
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		v := tbl.RawGetInt(i)
		if v == lua.LNil {
			continue
		}
		out = append(out, lua.LVAsString(v))
	}
	return out, nil
}

// ToQuery implements Tokenizer
func (s *Scripted) ToQuery(text, lang string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret, err := s.call("to_query", text, lang)
	if err != nil {
		return "", err
	}
	switch ret.Type() {
	case lua.LTString, lua.LTNumber:
		return lua.LVAsString(ret), nil
	case lua.LTNil:
		return "", nil
	}
	return "", fmt.Errorf("%w: to_query returned %s, want string", ErrScriptResult, ret.Type())
}

// Close releases the Lua state
func (s *Scripted) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		s.state.Close()
		s.state = nil
	}
}

// call invokes a global function. Caller must hold s.mu.
func (s *Scripted) call(fn, text, lang string) (lua.LValue, error) {
	if s.state == nil {
		return nil, fmt.Errorf("script %s is closed", s.name)
	}
	L := s.state
	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(fn),
		NRet:    1,
		Protect: true,
	}, lua.LString(text), lua.LString(lang))
	if err != nil {
		return nil, fmt.Errorf("script %s: %s: %w", s.name, fn, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// newSandbox opens a Lua state with only the base, table, string and math
// libraries plus the text helpers scripts rely on.
func newSandbox() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open lua %s library: %w", lib.name, err)
		}
	}

	// No filesystem access from scripts
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("lowercase", L.NewFunction(luaLowercase))
	L.SetGlobal("trim", L.NewFunction(luaTrim))
	L.SetGlobal("split", L.NewFunction(luaSplit))
	L.SetGlobal("words", L.NewFunction(luaWords))
	return L, nil
}

func luaLowercase(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

// split(s, sep) splits on sep, dropping empty parts
func luaSplit(L *lua.LState) int {
	s := L.CheckString(1)
	sep := L.OptString(2, " ")
	tbl := L.NewTable()
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			tbl.Append(lua.LString(part))
		}
	}
	L.Push(tbl)
	return 1
}

// words(s) returns the whitespace-delimited terms of s
func luaWords(L *lua.LState) int {
	tbl := L.NewTable()
	for _, w := range strings.Fields(L.CheckString(1)) {
		tbl.Append(lua.LString(w))
	}
	L.Push(tbl)
	return 1
}
