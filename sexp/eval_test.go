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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, src string) V {
	t.Helper()
	v, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return v
}

func evalSource(t *testing.T, e *Engine, src string) (V, error) {
	t.Helper()
	return e.Evaluate(mustParse(t, src))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		src  string
		want V
	}{
		{`(+ 1 2 3)`, Int(6)},
		{`(+)`, Int(0)},
		{`(+ 1 2.5)`, Flt(3.5)},
		{`(- 10 4 1)`, Int(5)},
		{`(- 7)`, Int(-7)},
		{`(* 2 3 4)`, Int(24)},
		{`(* 2 0.5)`, Flt(1)},
		{`(/ 7 2)`, Int(3)},
		{`(/ 7.0 2)`, Flt(3.5)},
		{`(= 1 1)`, Bool(true)},
		{`(= 1 2)`, Bool(false)},
		{`(= "a" "a" "a")`, Bool(true)},
		{`(if (= 1 1) "yes" "no")`, Str("yes")},
		{`(if #f 1 2)`, Int(2)},
		{`(car (list 1 2 3))`, Int(1)},
		{`(cdr (list 1 2 3))`, List([]V{Int(2), Int(3)})},
		{`(cons 0 (list 1 2))`, List([]V{Int(0), Int(1), Int(2)})},
		{`()`, List(nil)},
		{`42`, Int(42)},
		{`"plain"`, Str("plain")},
		{`true`, Bool(true)},
	}
	for _, test := range tests {
		got, err := evalSource(t, New(), test.src)
		if err != nil {
			t.Errorf("Evaluate(%q): %v", test.src, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("Evaluate(%q): (-want +got)\n%s", test.src, diff)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind Kind
	}{
		{`unbound`, ErrUnknownVariable},
		{`(no-such-function 1)`, ErrUnknownFunction},
		{`((list 1) 2)`, ErrBadFunctionPosition},
		{`(+ 1 "two")`, ErrType},
		{`(/ 1 0)`, ErrDivisionByZero},
		{`(/ 1.0 0.0)`, ErrDivisionByZero},
		{`(= 1 "one")`, ErrType},
		{`(if 1 2 3)`, ErrType},
		{`(if #t 1)`, ErrType},
		{`(car ())`, ErrEmptyList},
		{`(cdr ())`, ErrEmptyList},
		{`(car 1)`, ErrType},
		{`(cons 1 2)`, ErrType},
		{`(read-memory 0 16)`, ErrNotImplemented},
		{`(format-hex 255)`, ErrNotImplemented},
		{`(parse-pattern "AA ?? BB")`, ErrNotImplemented},
	}
	for _, test := range tests {
		_, err := evalSource(t, New(), test.src)
		if err == nil {
			t.Errorf("Evaluate(%q): expected %v", test.src, test.kind)
			continue
		}
		if !IsKind(err, test.kind) {
			t.Errorf("Evaluate(%q) = %v, expected %v",
				test.src, err, test.kind)
		}
	}
}

func TestVariables(t *testing.T) {
	e := New()
	e.Set("answer", Int(42))

	if got, err := evalSource(t, e, `answer`); err != nil ||
		!Equal(got, Int(42)) {
		t.Errorf("answer = %v, %v", got, err)
	}
	if got, err := evalSource(t, e, `(+ answer 1)`); err != nil ||
		!Equal(got, Int(43)) {
		t.Errorf("(+ answer 1) = %v, %v", got, err)
	}

	// A variable may name the function to call.
	e.Set("op", Str("+"))
	if got, err := evalSource(t, e, `(op 1 2)`); err != nil ||
		!Equal(got, Int(3)) {
		t.Errorf("(op 1 2) = %v, %v", got, err)
	}

	e.Set("notfn", Int(1))
	if _, err := evalSource(t, e, `(notfn 1)`); !IsKind(
		err, ErrBadFunctionPosition) {
		t.Errorf("(notfn 1): %v", err)
	}

	e.Clear()
	if _, ok := e.Get("answer"); ok {
		t.Error("Clear left variables behind")
	}
}

func TestEvaluateIn(t *testing.T) {
	e := New()
	e.Set("base", Int(1))
	e.Set("keep", Str("original"))

	context := map[string]V{
		"base":  Int(100), // shadows the persistent binding
		"extra": Int(5),
	}
	got, err := e.EvaluateIn(mustParse(t, `(+ base extra)`), context)
	if err != nil || !Equal(got, Int(105)) {
		t.Fatalf("contextual evaluation = %v, %v", got, err)
	}

	// The environment must come back exactly as it was,
	// shadowed names included.
	if v, ok := e.Get("base"); !ok || !Equal(v, Int(1)) {
		t.Errorf("base = %v after contextual evaluation", v)
	}
	if v, ok := e.Get("keep"); !ok || !Equal(v, Str("original")) {
		t.Errorf("keep = %v after contextual evaluation", v)
	}
	if _, ok := e.Get("extra"); ok {
		t.Error("overlay binding leaked into the environment")
	}

	// Same restoration on failure.
	if _, err := e.EvaluateIn(mustParse(t, `(car ())`), context); err == nil {
		t.Fatal("expected an error")
	}
	if v, ok := e.Get("base"); !ok || !Equal(v, Int(1)) {
		t.Errorf("base = %v after failed contextual evaluation", v)
	}
}

func TestEvaluationOrder(t *testing.T) {
	e := New()
	var order []int64
	e.Register("mark", func(args []V) (V, error) {
		if len(args) != 1 || args[0].Type != VInteger {
			return V{}, NewError(ErrType, "mark requires an integer")
		}
		order = append(order, args[0].Integer)
		return args[0], nil
	})
	e.Register("f", func(args []V) (V, error) { return List(nil), nil })

	if _, err := evalSource(t, e,
		`(f (mark 1) (mark 2) (mark 3))`); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, order); diff != "" {
		t.Errorf("evaluation order: (-want +got)\n%s", diff)
	}

	// An error must stop later arguments from being evaluated at all.
	order = nil
	if _, err := evalSource(t, e,
		`(f (mark 1) (car ()) (mark 3))`); !IsKind(err, ErrEmptyList) {
		t.Fatalf("expected the empty list error, got %v", err)
	}
	if diff := cmp.Diff([]int64{1}, order); diff != "" {
		t.Errorf("evaluation order after error: (-want +got)\n%s", diff)
	}
}

func TestIfLaziness(t *testing.T) {
	e := New()
	var order []int64
	e.Register("mark", func(args []V) (V, error) {
		order = append(order, args[0].Integer)
		return args[0], nil
	})

	got, err := evalSource(t, e, `(if (= 1 1) (mark 1) (mark 2))`)
	if err != nil || !Equal(got, Int(1)) {
		t.Fatalf("if = %v, %v", got, err)
	}
	if diff := cmp.Diff([]int64{1}, order); diff != "" {
		t.Errorf("the untaken branch got evaluated: (-want +got)\n%s", diff)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	e := New()
	e.Register("double", func(args []V) (V, error) {
		return Int(args[0].Integer * 2), nil
	})

	parsed := mustParse(t, `(double 21)`)
	if got, err := e.Evaluate(parsed); err != nil || !Equal(got, Int(42)) {
		t.Fatalf("double = %v, %v", got, err)
	}

	// Last registration wins, and the same tree picks it up.
	e.Register("double", func(args []V) (V, error) {
		return Int(args[0].Integer * 200), nil
	})
	if got, err := e.Evaluate(parsed); err != nil || !Equal(got, Int(4200)) {
		t.Fatalf("redefined double = %v, %v", got, err)
	}
}

func TestNativePanicContainment(t *testing.T) {
	e := New()
	e.Register("bomb", func([]V) (V, error) { panic("boom") })

	_, err := evalSource(t, e, `(bomb)`)
	if !IsKind(err, ErrNativeFailed) {
		t.Fatalf("expected a contained failure, got %v", err)
	}

	// The engine stays usable afterwards.
	if got, err := evalSource(t, e, `(+ 1 2)`); err != nil ||
		!Equal(got, Int(3)) {
		t.Errorf("engine unusable after a panic: %v, %v", got, err)
	}
}

func TestDeterminism(t *testing.T) {
	e := New()
	e.Set("x", Int(7))
	parsed := mustParse(t, `(* x (+ x 1))`)

	first, err := e.Evaluate(parsed)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Evaluate(parsed)
		if err != nil || !Equal(first, again) {
			t.Fatalf("run %d diverged: %v, %v", i, again, err)
		}
	}
}
