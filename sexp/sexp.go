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

// Package sexp implements the mcpd S-expression command language.
package sexp

import (
	"fmt"
	"strconv"
	"strings"
)

// --- Values ------------------------------------------------------------------

// VType denotes the type of a value.
type VType int

const (
	// VSymbol denotes a bare symbol, e.g. a variable or function name.
	VSymbol VType = iota
	// VString denotes a string value.
	VString
	// VInteger denotes a signed 64-bit integer value.
	VInteger
	// VFloat denotes a double-precision floating point value.
	VFloat
	// VBoolean denotes a boolean value.
	VBoolean
	// VList denotes an ordered list of values.
	VList
)

func (t VType) String() string {
	switch t {
	case VSymbol:
		return "symbol"
	case VString:
		return "string"
	case VInteger:
		return "integer"
	case VFloat:
		return "float"
	case VBoolean:
		return "boolean"
	case VList:
		return "list"
	}
	panic("unknown value type")
}

// V is a value in the command language, a tagged union over the payload
// field selected by Type. Values are immutable once constructed, evaluation
// always produces new ones.
type V struct {
	Type    VType
	String  string // VSymbol and VString contents
	Integer int64  // VInteger contents
	Float   float64
	Boolean bool
	List    []V // VList contents, in evaluation order
}

// Sym makes a new symbol value.
func Sym(s string) V { return V{Type: VSymbol, String: s} }

// Str makes a new string value.
func Str(s string) V { return V{Type: VString, String: s} }

// Int makes a new integer value.
func Int(i int64) V { return V{Type: VInteger, Integer: i} }

// Flt makes a new floating point value.
func Flt(f float64) V { return V{Type: VFloat, Float: f} }

// Bool makes a new boolean value.
func Bool(b bool) V { return V{Type: VBoolean, Boolean: b} }

// List makes a new list value containing the given sequence.
func List(list []V) V { return V{Type: VList, List: list} }

// IsAtom tells whether the value is an atom, that is, not a list.
func (v V) IsAtom() bool { return v.Type != VList }

// IsList tells whether the value is a list.
func (v V) IsList() bool { return v.Type == VList }

// Equal compares two values structurally.
func Equal(a, b V) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case VSymbol, VString:
		return a.String == b.String
	case VInteger:
		return a.Integer == b.Integer
	case VFloat:
		return a.Float == b.Float
	case VBoolean:
		return a.Boolean == b.Boolean
	case VList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// --- Limits ------------------------------------------------------------------

// Hard limits on untrusted input, enforced rather than advisory.
const (
	// MaxInput is the maximum accepted length of source text.
	MaxInput = 1024 * 1024
	// MaxDepth is the maximum nesting depth, shared by the scanner
	// and the evaluator so that indirect recursion stays bounded as well.
	MaxDepth = 100
	// MaxListLen is the maximum number of elements in a single list.
	MaxListLen = 10000
	// MaxString is the maximum decoded length of a string literal.
	MaxString = 64 * 1024

	maxIntDigits = 18
)

// --- Scanner -----------------------------------------------------------------

type scanner struct {
	src   string
	pos   int
	depth int
}

func (s *scanner) end() bool      { return s.pos >= len(s.src) }
func (s *scanner) current() byte  { return s.src[s.pos] }
func (s *scanner) advance() byte  { ch := s.src[s.pos]; s.pos++; return ch }

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isSymbolChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || isDigit(ch) ||
		strings.IndexByte("-_+*/=<>?!#", ch) >= 0
}

func (s *scanner) skipSpace() {
	for !s.end() && isSpace(s.current()) {
		s.pos++
	}
}

// Parse converts source text into a value tree. Exactly one expression is
// expected; anything but trailing whitespace after it is an error.
func Parse(src string) (V, error) {
	if len(src) > MaxInput {
		return V{}, newError(ErrInputTooLarge, -1,
			"expression too large (max %d bytes)", MaxInput)
	}

	s := &scanner{src: src}
	s.skipSpace()
	if s.end() {
		return V{}, newError(ErrEmptyExpression, -1, "empty expression")
	}

	v, err := s.expression()
	if err != nil {
		return V{}, err
	}

	s.skipSpace()
	if !s.end() {
		return V{}, newError(ErrTrailingInput, s.pos,
			"unexpected input after expression")
	}
	return v, nil
}

func (s *scanner) expression() (V, error) {
	// The counter must come back down on every exit path,
	// errors included.
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > MaxDepth {
		return V{}, newError(ErrRecursionLimit, s.pos,
			"recursion limit exceeded (max %d levels)", MaxDepth)
	}

	s.skipSpace()
	if s.end() {
		return V{}, newError(ErrMissingParen, s.pos, "unexpected end of input")
	}
	if s.current() == '(' {
		return s.list()
	}
	return s.atom()
}

func (s *scanner) list() (V, error) {
	s.advance() // '('

	var elements []V
	for {
		s.skipSpace()
		if s.end() {
			return V{}, newError(ErrMissingParen, s.pos, "missing closing ')'")
		}
		if s.current() == ')' {
			s.advance()
			return List(elements), nil
		}
		if len(elements) >= MaxListLen {
			return V{}, newError(ErrListTooLarge, s.pos,
				"list too large (max %d elements)", MaxListLen)
		}

		element, err := s.expression()
		if err != nil {
			return V{}, err
		}
		elements = append(elements, element)
	}
}

func (s *scanner) atom() (V, error) {
	switch ch := s.current(); {
	case ch == '"':
		return s.string()
	case isDigit(ch) || ch == '-' || ch == '+':
		return s.number()
	case ch == ')':
		return V{}, newError(ErrBadSymbol, s.pos, "unexpected ')'")
	default:
		return s.symbol()
	}
}

var stringEscapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'\\': '\\',
	'"':  '"',
	'0':  0,
}

func (s *scanner) string() (V, error) {
	s.advance() // '"'

	var buf strings.Builder
	for !s.end() && s.current() != '"' {
		if buf.Len() >= MaxString {
			return V{}, newError(ErrStringTooLong, s.pos,
				"string too long (max %d bytes)", MaxString)
		}

		ch := s.advance()
		if ch < 0x20 && ch != '\t' && ch != '\n' && ch != '\r' {
			return V{}, newError(ErrInvalidControl, s.pos-1,
				"control character in string")
		}
		if ch != '\\' {
			buf.WriteByte(ch)
			continue
		}

		if s.end() {
			return V{}, newError(ErrUnterminatedEscape, s.pos,
				"unterminated escape sequence")
		}
		escaped := s.advance()
		if translated, ok := stringEscapes[escaped]; ok {
			buf.WriteByte(translated)
		} else if escaped >= 0x20 && escaped <= 0x7e {
			// Unknown but printable escapes pass through verbatim.
			buf.WriteByte('\\')
			buf.WriteByte(escaped)
		} else {
			return V{}, newError(ErrInvalidEscape, s.pos-1,
				"invalid escape sequence")
		}
	}

	if s.end() {
		return V{}, newError(ErrUnterminatedString, s.pos,
			"unterminated string")
	}
	s.advance() // '"'
	return Str(buf.String()), nil
}

func (s *scanner) number() (V, error) {
	start := s.pos
	if ch := s.current(); ch == '-' || ch == '+' {
		s.advance()
	}

	digits, dots := 0, 0
	for !s.end() {
		switch ch := s.current(); {
		case isDigit(ch):
			digits++
		case ch == '.':
			if dots++; dots > 1 {
				// A second dot turns the token into a symbol.
				return s.symbolFrom(start)
			}
		default:
			goto scanned
		}
		s.advance()
	}
scanned:
	if digits == 0 {
		// A lone sign is a symbol, e.g. the + function.
		return s.symbolFrom(start)
	}

	token := s.src[start:s.pos]
	if dots > 0 {
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return V{}, newError(ErrInvalidFloat, start,
				"invalid float: %s", token)
		}
		return Flt(f), nil
	}

	if len(token) > maxIntDigits {
		return V{}, newError(ErrIntegerTooLarge, start,
			"integer too large: %s", token)
	}
	i, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return V{}, newError(ErrIntegerRange, start,
			"integer out of range: %s", token)
	}
	return Int(i), nil
}

// symbolFrom rescans a failed numeric token as a symbol, running up to the
// next delimiter so that the whole token is taken as written.
func (s *scanner) symbolFrom(start int) (V, error) {
	s.pos = start
	for !s.end() {
		if ch := s.current(); isSpace(ch) || ch == '(' || ch == ')' ||
			ch == '"' {
			break
		}
		s.advance()
	}
	return classify(s.src[start:s.pos]), nil
}

func (s *scanner) symbol() (V, error) {
	start := s.pos
	for !s.end() && isSymbolChar(s.current()) {
		s.advance()
	}
	if s.pos == start {
		return V{}, newError(ErrBadSymbol, s.pos,
			"unexpected character %q", s.current())
	}
	return classify(s.src[start:s.pos]), nil
}

func classify(token string) V {
	switch token {
	case "true", "#t":
		return Bool(true)
	case "false", "#f":
		return Bool(false)
	}
	return Sym(token)
}

// --- Serialization -----------------------------------------------------------

// Serialize renders a value tree back to source text. Parsing the result
// reproduces an equal tree.
func Serialize(v V) string {
	var buf strings.Builder
	serialize(&buf, v)
	return buf.String()
}

func serialize(buf *strings.Builder, v V) {
	switch v.Type {
	case VSymbol:
		buf.WriteString(v.String)
	case VString:
		quote(buf, v.String)
	case VInteger:
		buf.WriteString(strconv.FormatInt(v.Integer, 10))
	case VFloat:
		buf.WriteString(formatFloat(v.Float))
	case VBoolean:
		buf.WriteString(strconv.FormatBool(v.Boolean))
	case VList:
		buf.WriteByte('(')
		for i, element := range v.List {
			if i > 0 {
				buf.WriteByte(' ')
			}
			serialize(buf, element)
		}
		buf.WriteByte(')')
	}
}

func quote(buf *strings.Builder, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			buf.WriteString(`\r`)
		case 0:
			buf.WriteString(`\0`)
		default:
			buf.WriteByte(ch)
		}
	}
	buf.WriteByte('"')
}

// formatFloat renders a float so that it scans back as one: always with
// a decimal point, never in exponent form.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.IndexByte(s, '.') < 0 {
		s += ".0"
	}
	return s
}

// FormatDebug renders a value for interactive display, notably with
// integers shown in both hexadecimal and decimal.
func FormatDebug(v V) string {
	switch v.Type {
	case VInteger:
		return fmt.Sprintf("0x%x (%d)", v.Integer, v.Integer)
	case VFloat:
		return formatFloat(v.Float)
	case VString:
		var buf strings.Builder
		quote(&buf, v.String)
		return buf.String()
	case VBoolean:
		return strconv.FormatBool(v.Boolean)
	case VSymbol:
		return v.String
	case VList:
		return fmt.Sprintf("(list with %d elements)", len(v.List))
	}
	return "?"
}
