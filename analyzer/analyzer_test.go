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

package analyzer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("48 8b ?? 90")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Pattern{0x48, 0x8b, Wildcard, 0x90}, p); diff != "" {
		t.Error(diff)
	}
	if p.String() != "48 8B ?? 90" {
		t.Errorf("String() = %q", p.String())
	}

	for _, bad := range []string{"", "GG", "123", "48 8b zz"} {
		if _, err := ParsePattern(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestPatternFind(t *testing.T) {
	data := []byte{
		0x90, 0x48, 0x8b, 0x05, 0x90, 0x00,
		0x48, 0x8b, 0xc1, 0x90,
	}
	offsets, err := FindPattern(data, "48 8B ?? 90")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 6}, offsets); diff != "" {
		t.Error(diff)
	}

	// Adjacent matches must not overlap.
	nops, err := FindPattern([]byte{0x90, 0x90, 0x90, 0x90}, "90 90")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 2}, nops); diff != "" {
		t.Error(diff)
	}
}

func TestFindStrings(t *testing.T) {
	narrow := FindStrings([]byte("\x01\x02hello\x00\xffab\x00"), 4)
	want := []StringMatch{{Offset: 2, Text: "hello", Encoding: "ASCII"}}
	if diff := cmp.Diff(want, narrow); diff != "" {
		t.Error(diff)
	}

	wide := FindStrings([]byte{
		'w', 0, 'i', 0, 'd', 0, 'e', 0, 0xd8, 0xff}, 4)
	want = []StringMatch{{Offset: 0, Text: "wide", Encoding: "UTF-16LE"}}
	if diff := cmp.Diff(want, wide); diff != "" {
		t.Error(diff)
	}
}

func TestMetadata(t *testing.T) {
	pe := Metadata([]byte("MZ\x90\x00"))
	if pe["format"] != "PE" {
		t.Errorf("format = %q", pe["format"])
	}

	elf := Metadata([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	if elf["format"] != "ELF" || elf["class"] != "ELF64" {
		t.Errorf("format = %q, class = %q", elf["format"], elf["class"])
	}

	zeroes := Metadata(make([]byte, 16))
	if zeroes["format"] != "Unknown" {
		t.Errorf("format = %q", zeroes["format"])
	}
	if zeroes["entropy"] != "0.00" {
		t.Errorf("entropy = %q", zeroes["entropy"])
	}
	if zeroes["null_byte_percentage"] != "100.0" {
		t.Errorf("nulls = %q", zeroes["null_byte_percentage"])
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0xde, 0xad}); got != "DE AD" {
		t.Errorf("FormatHex = %q", got)
	}

	long := FormatHex(make([]byte, 17))
	want := "00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n00"
	if long != want {
		t.Errorf("FormatHex = %q", long)
	}
}
