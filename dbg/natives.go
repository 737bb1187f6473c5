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

package dbg

import (
	"fmt"

	"janouch.name/mcpd/analyzer"
	"janouch.name/mcpd/sexp"
)

// RegisterNatives replaces the engine's placeholder debugger functions
// with ones backed by the bridge. Registering over them is how they
// come alive, scripts keep calling the same names.
func RegisterNatives(e *sexp.Engine, b *Bridge) {
	e.Register("read-memory", func(args []sexp.V) (sexp.V, error) {
		if len(args) != 2 {
			return sexp.V{}, sexp.NewError(sexp.ErrType,
				"read-memory expects an address and a size")
		}
		if args[0].Type != sexp.VInteger ||
			args[1].Type != sexp.VInteger {
			return sexp.V{}, sexp.NewError(sexp.ErrType,
				"read-memory expects integer arguments")
		}
		if args[0].Integer < 0 {
			return sexp.V{}, sexp.NewError(sexp.ErrType,
				"read-memory: negative address")
		}

		data, err := b.ReadMemory(
			uint64(args[0].Integer), int(args[1].Integer))
		if err != nil {
			return sexp.V{}, sexp.NewError(sexp.ErrNativeFailed,
				"read-memory: %s", err)
		}

		list := make([]sexp.V, len(data))
		for i, c := range data {
			list[i] = sexp.Int(int64(c))
		}
		return sexp.List(list), nil
	})

	e.Register("format-hex", func(args []sexp.V) (sexp.V, error) {
		if len(args) != 1 {
			return sexp.V{}, sexp.NewError(sexp.ErrType,
				"format-hex expects one argument")
		}
		switch arg := args[0]; arg.Type {
		case sexp.VInteger:
			return sexp.Str(fmt.Sprintf("0x%X", uint64(arg.Integer))), nil
		case sexp.VList:
			data := make([]byte, len(arg.List))
			for i, v := range arg.List {
				if v.Type != sexp.VInteger ||
					v.Integer < 0 || v.Integer > 0xff {
					return sexp.V{}, sexp.NewError(sexp.ErrType,
						"format-hex: element %d is not a byte", i)
				}
				data[i] = byte(v.Integer)
			}
			return sexp.Str(analyzer.FormatHex(data)), nil
		default:
			return sexp.V{}, sexp.NewError(sexp.ErrType,
				"format-hex expects an integer or a list of bytes")
		}
	})

	e.Register("parse-pattern", func(args []sexp.V) (sexp.V, error) {
		if len(args) != 1 || args[0].Type != sexp.VString {
			return sexp.V{}, sexp.NewError(sexp.ErrType,
				"parse-pattern expects a pattern string")
		}

		pattern, err := analyzer.ParsePattern(args[0].String)
		if err != nil {
			return sexp.V{}, sexp.NewError(sexp.ErrNativeFailed,
				"parse-pattern: %s", err)
		}

		// Wildcards come out as -1, which no byte value can be.
		list := make([]sexp.V, len(pattern))
		for i, c := range pattern {
			list[i] = sexp.Int(int64(c))
		}
		return sexp.List(list), nil
	})
}
