package condition

import (
	"fmt"
	"strings"
	"sync"
)

// Evaluator decides whether a rule holds for the supplied values.
type Evaluator interface {
	Eval(rule string, values map[string]any) (bool, error)
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(rule string, values map[string]any) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(rule string, values map[string]any) (bool, error) {
	return fn(rule, values)
}

// Expr is a compiled expression.
type Expr struct {
	source string
	root   node
}

// Source returns the expression text the Expr was compiled from.
func (e Expr) Source() string { return e.source }

// Eval evaluates the expression. An empty expression holds.
func (e Expr) Eval(values map[string]any) (bool, error) {
	if e.root == nil {
		return true, nil
	}
	return e.root.eval(values)
}

// Identifiers lists the field names the expression reads, in first-use order.
func (e Expr) Identifiers() []string {
	var out []string
	seen := make(map[string]struct{})
	collect(e.root, func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	})
	return out
}

// Compile parses rule once so it can be evaluated repeatedly.
func Compile(rule string) (Expr, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return Expr{}, nil
	}
	tokens, err := lex(trimmed)
	if err != nil {
		return Expr{}, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return Expr{}, err
	}
	if !p.done() {
		return Expr{}, fmt.Errorf("condition: unexpected %q in %q", p.peek().text, trimmed)
	}
	return Expr{source: trimmed, root: root}, nil
}

// Cache is an Evaluator that compiles each distinct rule once. The zero
// value is ready to use and safe for concurrent callers.
type Cache struct {
	mu       sync.RWMutex
	compiled map[string]Expr
}

// New returns an empty compile cache.
func New() *Cache { return &Cache{} }

// Eval compiles (or reuses) rule and evaluates it against values.
func (c *Cache) Eval(rule string, values map[string]any) (bool, error) {
	expr, err := c.Compile(rule)
	if err != nil {
		return false, err
	}
	return expr.Eval(values)
}

// Compile returns the cached Expr for rule, compiling on first use.
func (c *Cache) Compile(rule string) (Expr, error) {
	key := strings.TrimSpace(rule)
	c.mu.RLock()
	expr, ok := c.compiled[key]
	c.mu.RUnlock()
	if ok {
		return expr, nil
	}

	expr, err := Compile(key)
	if err != nil {
		return Expr{}, err
	}
	c.mu.Lock()
	if c.compiled == nil {
		c.compiled = make(map[string]Expr)
	}
	c.compiled[key] = expr
	c.mu.Unlock()
	return expr, nil
}

var _ Evaluator = (*Cache)(nil)
