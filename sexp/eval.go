//
// Copyright (c) 2026, Přemysl Eric Janouch <p@janouch.name>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION
// OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN
// CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
//

package sexp

import "sort"

// --- Runtime -----------------------------------------------------------------

// NativeFn is a Go function invocable from the command language.
// Arguments arrive already evaluated, in writing order.
type NativeFn func(args []V) (V, error)

// Engine evaluates value trees. It owns its native function registry and
// its variable environment; there are no ambient globals. The engine itself
// is not safe for concurrent use, hosts sharing one across goroutines must
// serialize all calls.
type Engine struct {
	natives map[string]NativeFn
	vars    map[string]V
	overlay map[string]V // temporary bindings of EvaluateIn
	depth   int
}

// New returns a new engine with the built-in functions registered.
func New() *Engine {
	e := &Engine{
		natives: make(map[string]NativeFn),
		vars:    make(map[string]V),
	}
	e.registerBuiltins()
	return e
}

// Register adds a native function under the given name,
// replacing any previous registration.
func (e *Engine) Register(name string, fn NativeFn) {
	e.natives[name] = fn
}

// Lookup finds a registered native function.
func (e *Engine) Lookup(name string) (NativeFn, bool) {
	fn, ok := e.natives[name]
	return fn, ok
}

// Natives lists the names of all registered native functions, sorted.
func (e *Engine) Natives() []string {
	names := make([]string, 0, len(e.natives))
	for name := range e.natives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set binds a variable in the persistent environment.
func (e *Engine) Set(name string, v V) {
	e.vars[name] = v
}

// Get retrieves a variable from the persistent environment.
func (e *Engine) Get(name string) (V, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Clear removes all variables from the persistent environment.
func (e *Engine) Clear() {
	e.vars = make(map[string]V)
}

// Variables lists the names of all persistent variables, sorted.
func (e *Engine) Variables() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- Evaluation --------------------------------------------------------------

// Evaluate resolves a value tree to a result value or a typed error.
func (e *Engine) Evaluate(v V) (V, error) {
	return e.eval(v)
}

// EvaluateIn evaluates with the given bindings overlaid on the environment
// for the duration of this one call. Overlay entries shadow persistent
// variables of the same name; the environment always comes out of the call
// exactly as it went in.
func (e *Engine) EvaluateIn(v V, context map[string]V) (V, error) {
	saved := e.overlay
	e.overlay = context
	defer func() { e.overlay = saved }()
	return e.eval(v)
}

func (e *Engine) lookupVar(name string) (V, bool) {
	if e.overlay != nil {
		if v, ok := e.overlay[name]; ok {
			return v, true
		}
	}
	v, ok := e.vars[name]
	return v, ok
}

func (e *Engine) eval(v V) (V, error) {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > MaxDepth {
		return V{}, newError(ErrRecursionLimit, -1,
			"evaluation recursion limit exceeded (max %d levels)", MaxDepth)
	}

	switch v.Type {
	case VSymbol:
		if value, ok := e.lookupVar(v.String); ok {
			// Variables hold evaluated values, no further evaluation.
			return value, nil
		}
		return V{}, newError(ErrUnknownVariable, -1,
			"unknown variable: %s", v.String)
	case VList:
		return e.evalList(v.List)
	default:
		return v, nil
	}
}

func (e *Engine) evalList(list []V) (V, error) {
	if len(list) == 0 {
		return List(nil), nil
	}

	// The sole lazy form: branches must stay unevaluated until chosen.
	if list[0].Type == VSymbol && list[0].String == "if" {
		return e.evalIf(list[1:])
	}

	name, err := e.functionName(list[0])
	if err != nil {
		return V{}, err
	}

	// Strictly left to right, the first failure terminates the call.
	args := make([]V, 0, len(list)-1)
	for _, element := range list[1:] {
		value, err := e.eval(element)
		if err != nil {
			return V{}, err
		}
		args = append(args, value)
	}
	return e.apply(name, args)
}

// functionName reduces the head of a list to the name of a function.
// An unbound symbol in this position names the function directly, which is
// what makes plain calls like (car x) work without quoting.
func (e *Engine) functionName(head V) (string, error) {
	if head.Type == VSymbol {
		value, ok := e.lookupVar(head.String)
		if !ok {
			return head.String, nil
		}
		if value.Type == VString || value.Type == VSymbol {
			return value.String, nil
		}
		return "", newError(ErrBadFunctionPosition, -1,
			"variable %s does not name a function", head.String)
	}

	value, err := e.eval(head)
	if err != nil {
		return "", err
	}
	if value.Type == VString || value.Type == VSymbol {
		return value.String, nil
	}
	return "", newError(ErrBadFunctionPosition, -1,
		"first element of a list must name a function")
}

func (e *Engine) evalIf(args []V) (V, error) {
	if len(args) != 3 {
		return V{}, newError(ErrType,
			-1, "if expects 3 arguments, got %d", len(args))
	}
	condition, err := e.eval(args[0])
	if err != nil {
		return V{}, err
	}
	if condition.Type != VBoolean {
		return V{}, newError(ErrType,
			-1, "if condition must be a boolean, got %s", condition.Type)
	}
	if condition.Boolean {
		return e.eval(args[1])
	}
	return e.eval(args[2])
}

// apply invokes a registered native function. A panicking native is
// contained here and surfaced as an error tagged with its name.
func (e *Engine) apply(name string, args []V) (result V, err error) {
	fn, ok := e.natives[name]
	if !ok {
		return V{}, newError(ErrUnknownFunction, -1,
			"unknown function: %s", name)
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = V{}, newError(ErrNativeFailed, -1,
				"%s: native function failed: %v", name, r)
		}
	}()
	return fn(args)
}
