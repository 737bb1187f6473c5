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

// Package analyzer digs through memory dumps: byte pattern search with
// wildcards, printable string extraction, and cheap file format sniffing.
package analyzer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// --- Patterns ----------------------------------------------------------------

// Wildcard stands for any byte within a Pattern.
const Wildcard = -1

// Pattern is a byte sequence where Wildcard entries match anything.
type Pattern []int16

// ParsePattern parses a pattern of space-separated hex byte pairs,
// with "??" or "?" standing for a wildcard, e.g. "48 8B ?? 90".
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(s) {
		if tok == "?" || tok == "??" {
			p = append(p, Wildcard)
			continue
		}
		if len(tok) > 2 {
			return nil, fmt.Errorf("invalid pattern byte: %q", tok)
		}
		n, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern byte: %q", tok)
		}
		p = append(p, int16(n))
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return p, nil
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, b := range p {
		if b == Wildcard {
			parts[i] = "??"
		} else {
			parts[i] = fmt.Sprintf("%02X", b)
		}
	}
	return strings.Join(parts, " ")
}

func (p Pattern) matchAt(data []byte, off int) bool {
	for i, b := range p {
		if b != Wildcard && data[off+i] != byte(b) {
			return false
		}
	}
	return true
}

// Find returns the offsets of all non-overlapping matches within data.
func (p Pattern) Find(data []byte) []int {
	var offsets []int
	for i := 0; i+len(p) <= len(data); i++ {
		if p.matchAt(data, i) {
			offsets = append(offsets, i)
			i += len(p) - 1
		}
	}
	return offsets
}

// FindPattern is a convenience wrapper combining ParsePattern and Find.
func FindPattern(data []byte, pattern string) ([]int, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return p.Find(data), nil
}

// --- Strings -----------------------------------------------------------------

// StringMatch is a run of printable text found within a dump.
type StringMatch struct {
	Offset   int
	Text     string
	Encoding string // "ASCII" or "UTF-16LE"
}

func printable(b byte) bool {
	return b >= 32 && b <= 126 || b == '\t' || b == '\n' || b == '\r'
}

// FindStrings extracts ASCII and UTF-16LE string runs of at least
// minLength characters, sorted by offset.
func FindStrings(data []byte, minLength int) []StringMatch {
	if minLength < 1 {
		minLength = 1
	}

	var matches []StringMatch
	flush := func(start int, run []byte, encoding string) {
		if len(run) >= minLength {
			matches = append(matches, StringMatch{
				Offset:   start,
				Text:     string(run),
				Encoding: encoding,
			})
		}
	}

	var run []byte
	start := 0
	for i, b := range data {
		if printable(b) {
			if len(run) == 0 {
				start = i
			}
			run = append(run, b)
		} else {
			flush(start, run, "ASCII")
			run = nil
		}
	}
	flush(start, run, "ASCII")

	// n.b. only the Latin-1 subset of UTF-16 is recognized,
	// which is what the usual tooling does as well.
	run, start = nil, 0
	for i := 0; i+1 < len(data); i += 2 {
		c := binary.LittleEndian.Uint16(data[i:])
		if c > 0 && c < 256 && printable(byte(c)) {
			if len(run) == 0 {
				start = i
			}
			run = append(run, byte(c))
		} else {
			flush(start, run, "UTF-16LE")
			run = nil
		}
	}
	flush(start, run, "UTF-16LE")

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Offset < matches[b].Offset
	})
	return matches
}

// --- Metadata ----------------------------------------------------------------

// Metadata sniffs out basic facts about a dump: container format,
// entropy, and the proportion of null padding.
func Metadata(data []byte) map[string]string {
	m := map[string]string{
		"size":   strconv.Itoa(len(data)),
		"format": "Unknown",
	}
	switch {
	case len(data) >= 2 && data[0] == 'M' && data[1] == 'Z':
		m["format"] = "PE"
	case len(data) >= 4 && data[0] == 0x7f &&
		data[1] == 'E' && data[2] == 'L' && data[3] == 'F':
		m["format"] = "ELF"
		if len(data) >= 5 {
			switch data[4] {
			case 1:
				m["class"] = "ELF32"
			case 2:
				m["class"] = "ELF64"
			}
		}
	}
	if len(data) > 0 {
		m["entropy"] = strconv.FormatFloat(entropy(data), 'f', 2, 64)

		nulls := 0
		for _, b := range data {
			if b == 0 {
				nulls++
			}
		}
		m["null_byte_percentage"] = strconv.FormatFloat(
			float64(nulls)*100/float64(len(data)), 'f', 1, 64)
	}
	return m
}

func entropy(data []byte) float64 {
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	e := 0.
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / float64(len(data))
			e -= p * math.Log2(p)
		}
	}
	return e
}

// FormatHex renders bytes the way a debugger's dump window would,
// sixteen space-separated pairs per line.
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			if i%16 == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
