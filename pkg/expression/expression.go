// Package expression evaluates calculated-value expressions over execution
// data using a sandboxed expression language instead of general code
// execution. Only arithmetic, comparison, and string operations are
// reachable; there are no side effects and no ambient globals.
package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowbot-io/flowbot/pkg/template"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Engine compiles and evaluates expressions. Compiled programs are cached and
// reused across goroutines.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewEngine() *Engine {
	return &Engine{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate rewrites ${path} placeholders into environment variables bound to
// values resolved from data, then compiles and runs the expression. Rewriting
// into variables rather than pasting values keeps user-supplied strings out
// of the expression source entirely.
func (e *Engine) Evaluate(expression string, data map[string]any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	rewritten, env := bindPlaceholders(expression, data)

	prg, err := e.getOrCompile(rewritten)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, fmt.Errorf("expression %q failed: %w", expression, err)
	}

	return out, nil
}

func (e *Engine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()

		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	e.cache[expression] = prg

	return prg, nil
}

// bindPlaceholders replaces each ${path} with a synthetic variable name and
// returns the environment mapping those names to the resolved values. An
// unresolvable path binds nil, matching the absent-not-error rule for
// condition fields.
func bindPlaceholders(expression string, data map[string]any) (string, map[string]any) {
	env := make(map[string]any)

	index := 0
	rewritten := placeholderPattern.ReplaceAllStringFunc(expression, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])

		name := "v" + strconv.Itoa(index)
		index++

		value, _ := template.Resolve(path, data)
		env[name] = value

		return name
	})

	return rewritten, env
}
