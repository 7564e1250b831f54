// Package expr evaluates the engine's angle-bracket template language:
// bare variable references (`<Name>`) and function calls
// (`<FuncName(arg1,arg2)>`) whose arguments may themselves contain nested
// references. The scanner is a small hand-written recursive-descent
// reader rather than a regexp cascade, because the grammar nests
// (`<IF(<Status>,<UPPER(<FileName>)>,ERR)>`) and regexp can't balance
// brackets.
package expr

import (
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/counter"
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
var callRE = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)

// Evaluator resolves template strings against a VariableContext. Counters
// is consulted by the COUNTER() built-in; it may be nil if the caller
// knows no expression it evaluates will invoke COUNTER.
type Evaluator struct {
	Counters *counter.Store
}

// NewEvaluator builds an Evaluator backed by counters for COUNTER() calls.
func NewEvaluator(counters *counter.Store) *Evaluator {
	return &Evaluator{Counters: counters}
}

// Evaluate substitutes every `<...>` reference in s and returns the
// resulting string. It is deterministic except when s invokes COUNTER.
func (e *Evaluator) Evaluate(s string, ctx *VariableContext) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '<' {
			out.WriteByte(s[i])
			i++
			continue
		}

		end, err := findMatchingAngle(s, i)
		if err != nil {
			return "", err
		}

		inner := s[i+1 : end]
		val, err := e.evaluateToken(inner, ctx)
		if err != nil {
			return "", err
		}
		out.WriteString(val)
		i = end + 1
	}
	return out.String(), nil
}

// findMatchingAngle returns the index of the '>' that closes the '<' at
// open, honoring nested `<...>` pairs inside it.
func findMatchingAngle(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("expr: unterminated \"<\" starting at offset %d", open)
}

func (e *Evaluator) evaluateToken(token string, ctx *VariableContext) (string, error) {
	token = strings.TrimSpace(token)

	if identifierRE.MatchString(token) {
		return e.lookupVariable(token, ctx)
	}

	m := callRE.FindStringSubmatch(token)
	if m == nil {
		return "", fmt.Errorf("expr: cannot parse %q as a variable or function call", token)
	}
	funcName, rawArgs := m[1], m[2]

	argExprs, err := splitArgs(rawArgs)
	if err != nil {
		return "", fmt.Errorf("expr: %s(...): %w", funcName, err)
	}

	args := make([]string, len(argExprs))
	for i, a := range argExprs {
		v, err := e.Evaluate(a, ctx)
		if err != nil {
			return "", err
		}
		args[i] = v
	}

	fn, ok := builtins[strings.ToUpper(funcName)]
	if !ok {
		return "", fmt.Errorf("expr: unknown function %q", funcName)
	}
	return fn(e, args)
}

func (e *Evaluator) lookupVariable(name string, ctx *VariableContext) (string, error) {
	if v, ok := ctx.Get(name); ok {
		return v, nil
	}
	log.WithField("variable", name).Warn("expr: unknown variable, substituting empty string")
	return "", nil
}

// splitArgs splits a function call's argument list on top-level commas,
// ignoring commas nested inside `<...>` or `(...)`.
func splitArgs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var args []string
	depthAngle, depthParen := 0, 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depthAngle++
		case '>':
			depthAngle--
			if depthAngle < 0 {
				return nil, fmt.Errorf("unbalanced \">\" in argument list %q", s)
			}
		case '(':
			depthParen++
		case ')':
			depthParen--
			if depthParen < 0 {
				return nil, fmt.Errorf("unbalanced \")\" in argument list %q", s)
			}
		case ',':
			if depthAngle == 0 && depthParen == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depthAngle != 0 || depthParen != 0 {
		return nil, fmt.Errorf("unbalanced brackets in argument list %q", s)
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args, nil
}
