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
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"janouch.name/mcpd/sexp"
)

// fakeDebugger answers the command protocol well enough for tests.
func fakeDebugger(t *testing.T) *Bridge {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFake(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return New(addr.IP.String(), addr.Port, time.Second, nil)
}

func serveFake(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "dump":
			fmt.Fprintf(conn, "48 89 E5 48\n83 EC 20\n.\n")
		case "r":
			if strings.Contains(fields[1], "=") {
				fmt.Fprintf(conn, ".\n")
			} else {
				fmt.Fprintf(conn, "%s=0000000000401000\n.\n",
					strings.ToUpper(fields[1]))
			}
		case "disasm":
			fmt.Fprintf(conn, "mov rax, rcx\nadd rax, 1\nret\n.\n")
		case "modlist":
			fmt.Fprintf(conn,
				"400000 19000 target.exe\n7ff800000000 1f0000 ntdll.dll\n.\n")
		case "bp", "bc", "fill", "run", "pause", "sti", "sto":
			fmt.Fprintf(conn, ".\n")
		default:
			fmt.Fprintf(conn, "! unknown command\n.\n")
		}
	}
}

func TestBridge(t *testing.T) {
	b := fakeDebugger(t)

	if _, err := b.Exec("r rax"); err == nil {
		t.Error("Exec succeeded while disconnected")
	}
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect(); err != nil {
		t.Errorf("reconnect: %s", err)
	}
	if !b.Connected() {
		t.Error("not connected after Connect")
	}

	data, err := b.ReadMemory(0x401000, 7)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x48, 0x89, 0xe5, 0x48, 0x83, 0xec, 0x20}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Error(diff)
	}

	// Oversized replies are clipped to the requested size.
	clipped, err := b.ReadMemory(0x401000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(clipped) != 2 {
		t.Errorf("len = %d", len(clipped))
	}

	value, err := b.Register("rax")
	if err != nil {
		t.Fatal(err)
	}
	if value != 0x401000 {
		t.Errorf("rax = %#x", value)
	}
	if err := b.SetRegister("rax", 1); err != nil {
		t.Error(err)
	}

	listing, err := b.Disassemble(0x401000, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(listing, "mov rax, rcx\n") {
		t.Errorf("listing = %q", listing)
	}

	modules, err := b.Modules()
	if err != nil {
		t.Fatal(err)
	}
	wantModules := []Module{
		{Base: 0x400000, Size: 0x19000, Name: "target.exe"},
		{Base: 0x7ff800000000, Size: 0x1f0000, Name: "ntdll.dll"},
	}
	if diff := cmp.Diff(wantModules, modules); diff != "" {
		t.Error(diff)
	}
	base, err := b.ModuleBase("NTDLL.DLL")
	if err != nil {
		t.Fatal(err)
	}
	if base != 0x7ff800000000 {
		t.Errorf("base = %#x", base)
	}
	if _, err := b.ModuleBase("missing.dll"); err == nil {
		t.Error("missing module resolved")
	}

	if err := b.SetBreakpoint(0x401000); err != nil {
		t.Error(err)
	}
	if err := b.RemoveBreakpoint(0x401000); err != nil {
		t.Error(err)
	}
	for _, step := range []func() error{
		b.Run, b.Pause, b.StepInto, b.StepOver} {
		if err := step(); err != nil {
			t.Error(err)
		}
	}

	if _, err := b.Exec("selfdestruct"); err == nil ||
		!strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected a protocol error, got %v", err)
	}

	if err := b.Close(); err != nil {
		t.Error(err)
	}
	if b.Connected() {
		t.Error("still connected after Close")
	}
}

func TestBridgeValidation(t *testing.T) {
	b := fakeDebugger(t)
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := b.ReadMemory(0, 16); err == nil {
		t.Error("null address accepted")
	}
	if _, err := b.ReadMemory(0x401000, 0); err == nil {
		t.Error("zero size accepted")
	}
	if _, err := b.ReadMemory(0x401000, maxReadSize+1); err == nil {
		t.Error("oversized read accepted")
	}
	if _, err := b.Exec(""); err == nil {
		t.Error("empty command accepted")
	}
	if _, err := b.Exec(strings.Repeat("x", maxCommandLen+1)); err == nil {
		t.Error("overlong command accepted")
	}
}

func TestSanitize(t *testing.T) {
	got, err := sanitize("bp 0x401000; rm -rf | `boom`\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != "bp 0x401000_ rm -rf _ _boom__" {
		t.Errorf("sanitize = %q", got)
	}
}

func TestRegisterNatives(t *testing.T) {
	b := fakeDebugger(t)
	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	e := sexp.New()
	RegisterNatives(e, b)

	eval := func(t *testing.T, source string) (sexp.V, error) {
		t.Helper()
		parsed, err := sexp.Parse(source)
		if err != nil {
			t.Fatal(err)
		}
		return e.Evaluate(parsed)
	}

	result, err := eval(t, "(read-memory 4198400 4)")
	if err != nil {
		t.Fatal(err)
	}
	want := sexp.List([]sexp.V{
		sexp.Int(0x48), sexp.Int(0x89), sexp.Int(0xe5), sexp.Int(0x48)})
	if diff := cmp.Diff(want, result); diff != "" {
		t.Error(diff)
	}

	result, err = eval(t, "(format-hex 4198400)")
	if err != nil {
		t.Fatal(err)
	}
	if result.String != "0x401000" {
		t.Errorf("format-hex = %q", result.String)
	}

	result, err = eval(t, `(format-hex (list 222 173))`)
	if err != nil {
		t.Fatal(err)
	}
	if result.String != "DE AD" {
		t.Errorf("format-hex = %q", result.String)
	}

	result, err = eval(t, `(parse-pattern "48 8B ?? 90")`)
	if err != nil {
		t.Fatal(err)
	}
	want = sexp.List([]sexp.V{
		sexp.Int(0x48), sexp.Int(0x8b), sexp.Int(-1), sexp.Int(0x90)})
	if diff := cmp.Diff(want, result); diff != "" {
		t.Error(diff)
	}

	for _, source := range []string{
		"(read-memory)",
		`(read-memory "a" "b")`,
		"(read-memory -1 4)",
		"(format-hex)",
		"(format-hex #t)",
		`(format-hex (list 256))`,
		"(parse-pattern 1)",
	} {
		if _, err := eval(t, source); !sexp.IsKind(err, sexp.ErrType) {
			t.Errorf("%s: expected a type error, got %v", source, err)
		}
	}
	if _, err := eval(t, `(parse-pattern "zz")`); !sexp.IsKind(
		err, sexp.ErrNativeFailed) {
		t.Errorf("expected a native failure, got %v", err)
	}
	if _, err := eval(t, "(read-memory 1 0)"); !sexp.IsKind(
		err, sexp.ErrNativeFailed) {
		t.Errorf("expected a native failure, got %v", err)
	}
}
