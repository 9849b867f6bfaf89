// Package render is the single placeholder engine used both to validate
// template text at write time and to render it at read time, so the two can
// never disagree about what is well-formed.
//
// Syntax is Django's ({{ name }}, {% if %}, {% for %}, filters) as
// implemented by pongo2. Tags that reach outside the template text
// (include, extends, import, ssi) are banned: template bodies are
// client-supplied and must not read server files.
//
// Undefined variables render as the empty string. HTML autoescaping stays
// enabled, matching Django's default.
package render

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/flosch/pongo2/v6"
)

var (
	// ErrSyntax marks text that does not parse as a template.
	ErrSyntax = errors.New("invalid template syntax")
	// ErrExecute marks a failure while executing an already-parsed template.
	ErrExecute = errors.New("template execution failed")
)

// bannedTags are tags that would let template text load other files.
var bannedTags = []string{"include", "extends", "import", "ssi"}

// identRE mirrors pongo2's rule for context keys; other keys make Execute fail.
var identRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SyntaxError describes where a template failed to parse.
type SyntaxError struct {
	Line   int
	Column int
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d col %d: %s", e.Line, e.Column, e.Reason)
	}
	return e.Reason
}

// Is lets errors.Is(err, ErrSyntax) match any *SyntaxError.
func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// Engine parses and executes template strings. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex // guards parsing; TemplateSet mutates internal state on first parse
	set *pongo2.TemplateSet
}

// New returns an Engine with file-loading tags banned.
func New() (*Engine, error) {
	set := pongo2.NewSet("templates", pongo2.DefaultLoader)
	for _, tag := range bannedTags {
		if err := set.BanTag(tag); err != nil {
			return nil, fmt.Errorf("render: ban tag %q: %w", tag, err)
		}
	}
	return &Engine{set: set}, nil
}

// MustNew is New that panics on error.
func MustNew() *Engine {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

// Validate reports whether text parses. The returned error, if any, is a
// *SyntaxError (errors.Is(err, ErrSyntax) holds).
func (e *Engine) Validate(text string) error {
	_, err := e.parse(text)
	return err
}

// Render parses text and executes it with vars. Keys of vars that are not
// valid identifiers are dropped since no placeholder can reference them.
func (e *Engine) Render(text string, vars map[string]any) (string, error) {
	tpl, err := e.parse(text)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(contextFrom(vars))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecute, err)
	}
	return out, nil
}

func (e *Engine) parse(text string) (*pongo2.Template, error) {
	e.mu.Lock()
	tpl, err := e.set.FromString(text)
	e.mu.Unlock()
	if err != nil {
		return nil, toSyntaxError(err)
	}
	return tpl, nil
}

func toSyntaxError(err error) *SyntaxError {
	var perr *pongo2.Error
	if errors.As(err, &perr) {
		reason := perr.Error()
		if perr.OrigError != nil {
			reason = perr.OrigError.Error()
		}
		return &SyntaxError{Line: perr.Line, Column: perr.Column, Reason: reason}
	}
	return &SyntaxError{Reason: err.Error()}
}

func contextFrom(vars map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(vars))
	for k, v := range vars {
		if identRE.MatchString(k) {
			ctx[k] = v
		}
	}
	return ctx
}
