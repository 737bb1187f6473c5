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

// Package dbg speaks a line-oriented command protocol to a debugger
// backend over TCP, and exposes the connection to scripts.
package dbg

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"janouch.name/mcpd/config"
	"janouch.name/mcpd/logbook"
)

const (
	// A single command may not grow unboundedly, it travels on one line.
	maxCommandLen = 4096
	// Upper bound on a single memory read, mirroring the backend's own.
	maxReadSize = 1 << 20
)

// Bridge is a client connection to a debugger backend. Commands go out
// as single lines, replies come back as lines terminated by a lone ".",
// and lines starting with "! " carry errors.
type Bridge struct {
	mu      sync.Mutex
	addr    string
	timeout time.Duration
	conn    net.Conn
	r       *bufio.Reader
	log     *logbook.Logger
}

// New makes a Bridge aimed at the given endpoint, not yet connected.
func New(host string, port int, timeout time.Duration,
	log *logbook.Logger) *Bridge {
	if log == nil {
		log = logbook.Discard
	}
	return &Bridge{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		log:     log,
	}
}

// FromConfig makes a Bridge from the debugger section of configuration.
func FromConfig(c *config.Config, log *logbook.Logger) *Bridge {
	return New(c.Debugger.Host, c.Debugger.Port,
		time.Duration(c.Debugger.TimeoutMS)*time.Millisecond, log)
}

// Connect dials the backend. Connecting twice is not an error.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", b.addr, b.timeout)
	if err != nil {
		return fmt.Errorf("debugger connection failed: %w", err)
	}

	b.conn, b.r = conn, bufio.NewReader(conn)
	b.log.Infof("connected to debugger at %s", b.addr)
	return nil
}

// Close drops the connection, if any.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn, b.r = nil, nil
	b.log.Infof("disconnected from debugger")
	return err
}

// Connected tells whether the bridge currently holds a connection.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Addr returns the configured endpoint address.
func (b *Bridge) Addr() string { return b.addr }

// sanitize rejects overlong commands and replaces characters that
// could confuse the line protocol or the backend's command parser.
func sanitize(command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("empty command")
	}
	if len(command) > maxCommandLen {
		return "", fmt.Errorf("command too long (%d bytes)", len(command))
	}

	var sb strings.Builder
	for _, c := range []byte(command) {
		switch {
		case c == ';' || c == '|' || c == '&' || c == '`' || c == '$' ||
			c == '<' || c == '>' || c == '"' || c == '\'':
			sb.WriteByte('_')
		case c < 32 || c > 126:
			sb.WriteByte('_')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// Exec sends one command and collects the reply, which may span
// multiple lines.
func (b *Bridge) Exec(command string) (string, error) {
	command, err := sanitize(command)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return "", fmt.Errorf("not connected to debugger")
	}

	deadline := time.Now().Add(b.timeout)
	if err := b.conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(b.conn, "%s\n", command); err != nil {
		b.drop()
		return "", fmt.Errorf("debugger write failed: %w", err)
	}

	var lines []string
	for {
		line, err := b.r.ReadString('\n')
		if err != nil {
			b.drop()
			return "", fmt.Errorf("debugger read failed: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "." {
			break
		}
		if strings.HasPrefix(line, "! ") {
			return "", fmt.Errorf("debugger: %s", line[2:])
		}
		lines = append(lines, line)
	}

	b.log.Debugf("debugger command %q: %d reply lines",
		command, len(lines))
	return strings.Join(lines, "\n"), nil
}

// drop discards a connection whose protocol state is no longer known.
func (b *Bridge) drop() {
	_ = b.conn.Close()
	b.conn, b.r = nil, nil
}

// --- Operations --------------------------------------------------------------

func checkAddress(address uint64) error {
	if address == 0 {
		return fmt.Errorf("invalid address")
	}
	return nil
}

// ReadMemory retrieves size bytes of target memory starting at address.
func (b *Bridge) ReadMemory(address uint64, size int) ([]byte, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	if size <= 0 || size > maxReadSize {
		return nil, fmt.Errorf("invalid read size %d", size)
	}

	reply, err := b.Exec(fmt.Sprintf("dump 0x%x %x", address, size))
	if err != nil {
		return nil, err
	}
	data, err := parseHex(reply)
	if err != nil {
		return nil, err
	}
	if len(data) > size {
		data = data[:size]
	}
	return data, nil
}

// WriteMemory stores data into target memory at address.
func (b *Bridge) WriteMemory(address uint64, data []byte) error {
	if err := checkAddress(address); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("nothing to write")
	}

	var hex strings.Builder
	for _, c := range data {
		fmt.Fprintf(&hex, "%02x", c)
	}
	_, err := b.Exec(fmt.Sprintf("fill 0x%x %s", address, hex.String()))
	return err
}

// Register retrieves the value of a named register,
// expecting a "NAME=hexvalue" reply.
func (b *Bridge) Register(name string) (uint64, error) {
	reply, err := b.Exec("r " + name)
	if err != nil {
		return 0, err
	}

	for _, line := range strings.Split(reply, "\n") {
		eq := strings.IndexByte(line, '=')
		if eq < 0 || !strings.EqualFold(
			strings.TrimSpace(line[:eq]), name) {
			continue
		}
		value, err := strconv.ParseUint(
			strings.TrimSpace(line[eq+1:]), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("unparsable register value: %w", err)
		}
		return value, nil
	}
	return 0, fmt.Errorf("register %q not found in reply", name)
}

// SetRegister assigns a value to a named register.
func (b *Bridge) SetRegister(name string, value uint64) error {
	_, err := b.Exec(fmt.Sprintf("r %s=0x%x", name, value))
	return err
}

// SetBreakpoint places a software breakpoint at address.
func (b *Bridge) SetBreakpoint(address uint64) error {
	if err := checkAddress(address); err != nil {
		return err
	}
	_, err := b.Exec(fmt.Sprintf("bp 0x%x", address))
	return err
}

// RemoveBreakpoint clears the breakpoint at address.
func (b *Bridge) RemoveBreakpoint(address uint64) error {
	if err := checkAddress(address); err != nil {
		return err
	}
	_, err := b.Exec(fmt.Sprintf("bc 0x%x", address))
	return err
}

// Run resumes target execution.
func (b *Bridge) Run() error { _, err := b.Exec("run"); return err }

// Pause suspends target execution.
func (b *Bridge) Pause() error { _, err := b.Exec("pause"); return err }

// StepInto advances the target by a single instruction.
func (b *Bridge) StepInto() error { _, err := b.Exec("sti"); return err }

// StepOver advances the target past the current instruction,
// running any call to completion.
func (b *Bridge) StepOver() error { _, err := b.Exec("sto"); return err }

// Disassemble fetches the listing of count instructions from address.
func (b *Bridge) Disassemble(address uint64, count int) (string, error) {
	if err := checkAddress(address); err != nil {
		return "", err
	}
	if count < 1 {
		count = 1
	}
	return b.Exec(fmt.Sprintf("disasm 0x%x %d", address, count))
}

// Module is one loaded image within the target.
type Module struct {
	Base uint64
	Size uint64
	Name string
}

// Modules lists loaded modules, expecting "base size name" reply lines.
func (b *Bridge) Modules() ([]Module, error) {
	reply, err := b.Exec("modlist")
	if err != nil {
		return nil, err
	}

	var modules []Module
	for _, line := range strings.Split(reply, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		base, err1 := strconv.ParseUint(fields[0], 16, 64)
		size, err2 := strconv.ParseUint(fields[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		modules = append(modules,
			Module{Base: base, Size: size, Name: fields[2]})
	}
	return modules, nil
}

// ModuleBase resolves a module name to its load address.
func (b *Bridge) ModuleBase(name string) (uint64, error) {
	modules, err := b.Modules()
	if err != nil {
		return 0, err
	}
	for _, m := range modules {
		if strings.EqualFold(m.Name, name) {
			return m.Base, nil
		}
	}
	return 0, fmt.Errorf("module %q not loaded", name)
}

// parseHex decodes whitespace-separated hexadecimal byte pairs.
func parseHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	data := make([]byte, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("unparsable hex data: %q", f)
		}
		data = append(data, byte(n))
	}
	return data, nil
}
