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

// --- Standard library --------------------------------------------------------

func (e *Engine) registerBuiltins() {
	e.Register("+", fnAdd)
	e.Register("-", fnSubtract)
	e.Register("*", fnMultiply)
	e.Register("/", fnDivide)
	e.Register("=", fnEquals)
	e.Register("list", fnList)
	e.Register("car", fnCar)
	e.Register("cdr", fnCdr)
	e.Register("cons", fnCons)

	// Debugging natives are declared up front so that expressions naming
	// them parse and dispatch; a debugger bridge replaces them once wired.
	e.Register("read-memory", notWired("read-memory"))
	e.Register("format-hex", notWired("format-hex"))
	e.Register("parse-pattern", notWired("parse-pattern"))
}

func notWired(name string) NativeFn {
	return func([]V) (V, error) {
		return V{}, NewError(ErrNotImplemented,
			"%s: no debugger session wired in", name)
	}
}

func isNumber(v V) bool {
	return v.Type == VInteger || v.Type == VFloat
}

func asFloat(v V) float64 {
	if v.Type == VInteger {
		return float64(v.Integer)
	}
	return v.Float
}

// anyFloat checks all arguments are numeric and tells whether the result
// promotes to float.
func anyFloat(name string, args []V) (bool, error) {
	isFloat := false
	for _, arg := range args {
		if !isNumber(arg) {
			return false, NewError(ErrType,
				"%s requires numeric arguments, got %s", name, arg.Type)
		}
		if arg.Type == VFloat {
			isFloat = true
		}
	}
	return isFloat, nil
}

func fnAdd(args []V) (V, error) {
	isFloat, err := anyFloat("+", args)
	if err != nil {
		return V{}, err
	}
	if isFloat {
		sum := 0.
		for _, arg := range args {
			sum += asFloat(arg)
		}
		return Flt(sum), nil
	}
	var sum int64
	for _, arg := range args {
		sum += arg.Integer
	}
	return Int(sum), nil
}

func fnSubtract(args []V) (V, error) {
	isFloat, err := anyFloat("-", args)
	if err != nil {
		return V{}, err
	}
	if len(args) == 0 {
		return V{}, NewError(ErrType, "- requires at least one argument")
	}
	if isFloat {
		difference := asFloat(args[0])
		if len(args) == 1 {
			return Flt(-difference), nil
		}
		for _, arg := range args[1:] {
			difference -= asFloat(arg)
		}
		return Flt(difference), nil
	}
	difference := args[0].Integer
	if len(args) == 1 {
		return Int(-difference), nil
	}
	for _, arg := range args[1:] {
		difference -= arg.Integer
	}
	return Int(difference), nil
}

func fnMultiply(args []V) (V, error) {
	isFloat, err := anyFloat("*", args)
	if err != nil {
		return V{}, err
	}
	if isFloat {
		product := 1.
		for _, arg := range args {
			product *= asFloat(arg)
		}
		return Flt(product), nil
	}
	var product int64 = 1
	for _, arg := range args {
		product *= arg.Integer
	}
	return Int(product), nil
}

func fnDivide(args []V) (V, error) {
	isFloat, err := anyFloat("/", args)
	if err != nil {
		return V{}, err
	}
	if len(args) < 2 {
		return V{}, NewError(ErrType, "/ requires at least two arguments")
	}
	if isFloat {
		// Float division by zero is an error too, for consistency;
		// the engine never produces infinities or NaNs.
		quotient := asFloat(args[0])
		for _, arg := range args[1:] {
			if divisor := asFloat(arg); divisor == 0 {
				return V{}, NewError(ErrDivisionByZero, "division by zero")
			} else {
				quotient /= divisor
			}
		}
		return Flt(quotient), nil
	}
	quotient := args[0].Integer
	for _, arg := range args[1:] {
		if arg.Integer == 0 {
			return V{}, NewError(ErrDivisionByZero, "division by zero")
		}
		quotient /= arg.Integer
	}
	return Int(quotient), nil
}

func fnEquals(args []V) (V, error) {
	if len(args) < 2 {
		return V{}, NewError(ErrType, "= requires at least two arguments")
	}
	for _, arg := range args[1:] {
		if arg.Type != args[0].Type {
			// Mismatched types are a mistake worth surfacing,
			// not a false.
			return V{}, NewError(ErrType,
				"= cannot compare %s with %s", args[0].Type, arg.Type)
		}
	}
	for _, arg := range args[1:] {
		if !Equal(args[0], arg) {
			return Bool(false), nil
		}
	}
	return Bool(true), nil
}

func fnList(args []V) (V, error) {
	return List(append([]V(nil), args...)), nil
}

func fnCar(args []V) (V, error) {
	if len(args) != 1 || args[0].Type != VList {
		return V{}, NewError(ErrType, "car requires a single list argument")
	}
	if len(args[0].List) == 0 {
		return V{}, NewError(ErrEmptyList, "car of an empty list")
	}
	return args[0].List[0], nil
}

func fnCdr(args []V) (V, error) {
	if len(args) != 1 || args[0].Type != VList {
		return V{}, NewError(ErrType, "cdr requires a single list argument")
	}
	if len(args[0].List) == 0 {
		return V{}, NewError(ErrEmptyList, "cdr of an empty list")
	}
	return List(append([]V(nil), args[0].List[1:]...)), nil
}

func fnCons(args []V) (V, error) {
	if len(args) != 2 {
		return V{}, NewError(ErrType, "cons requires two arguments")
	}
	if args[1].Type != VList {
		return V{}, NewError(ErrType, "cons requires a list second argument")
	}
	list := make([]V, 0, 1+len(args[1].List))
	list = append(list, args[0])
	return List(append(list, args[1].List...)), nil
}
