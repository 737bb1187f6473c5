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

// Package cli is the interactive front of the program: a liner-based
// REPL that hands expressions to the script engine, and routes a few
// special command heads to the LLM engine and the debugger bridge
// before the engine ever sees them.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"janouch.name/mcpd/config"
	"janouch.name/mcpd/dbg"
	"janouch.name/mcpd/llm"
	"janouch.name/mcpd/logbook"
	"janouch.name/mcpd/sexp"
)

// Version identifies the program in banners and status output.
const Version = "1.0.0"

const historyFilename = ".mcpd_history"

// routed are list heads handled by the host rather than the engine,
// these names are never registered as script functions.
var routed = map[string]bool{
	"llm": true, "dbg": true, "log": true, "config": true,
	"help": true, "exit": true, "quit": true,
}

var colonCommands = []string{
	"clear", "config", "connect", "disconnect", "help",
	"history", "quit", "session", "status",
}

// Options carries the subsystems a CLI drives.
type Options struct {
	Engine *sexp.Engine
	LLM    *llm.Engine
	Bridge *dbg.Bridge
	Config *config.Config
	Log    *logbook.Logger

	Stdout io.Writer
	Stderr io.Writer
	Quiet  bool
}

// CLI serializes all access to the engine and the session.
type CLI struct {
	mu sync.Mutex
	Options

	colors  bool
	session map[string]sexp.V
	history []string
	done    bool
}

// New assembles a CLI, filling in defaults for missing options.
func New(options Options) *CLI {
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}
	if options.Log == nil {
		options.Log = logbook.Discard
	}

	c := &CLI{Options: options, session: make(map[string]sexp.V)}
	if f, ok := options.Stdout.(*os.File); ok {
		c.colors = isatty.IsTerminal(f.Fd())
	}
	return c
}

// Done tells whether a quit command has been processed.
func (c *CLI) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *CLI) colorize(color, s string) string {
	if !c.colors {
		return s
	}
	return color + s + "\x1b[0m"
}

func (c *CLI) printError(err error) {
	fmt.Fprintf(c.Stderr, "%s%s\n", c.colorize("\x1b[31m", "error: "), err)
}

func (c *CLI) printInfo(s string) {
	if !c.Quiet {
		fmt.Fprintf(c.Stdout, "%s%s\n", c.colorize("\x1b[36m", "info: "), s)
	}
}

// --- Input processing --------------------------------------------------------

// Process handles one line of input and returns what to print.
func (c *CLI) Process(input string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	c.history = append(c.history, input)

	if strings.HasPrefix(input, ":") {
		fields := strings.Fields(input[1:])
		if len(fields) == 0 {
			return "", fmt.Errorf("empty command")
		}
		return c.builtin(fields[0], fields[1:])
	}

	parsed, err := sexp.Parse(input)
	if err != nil {
		return "", err
	}

	// Some command heads belong to the host, not to the engine.
	if parsed.Type == sexp.VList && len(parsed.List) > 0 &&
		parsed.List[0].Type == sexp.VSymbol &&
		routed[parsed.List[0].String] {
		return c.route(parsed.List[0].String, parsed.List[1:])
	}

	result, err := c.Engine.EvaluateIn(parsed, c.session)
	if err != nil {
		return "", err
	}
	return sexp.FormatDebug(result), nil
}

// evalArgs evaluates routed command arguments one by one,
// with session variables in scope.
func (c *CLI) evalArgs(args []sexp.V) ([]sexp.V, error) {
	results := make([]sexp.V, len(args))
	for i, arg := range args {
		result, err := c.Engine.EvaluateIn(arg, c.session)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}
	return results, nil
}

func asText(v sexp.V) string {
	if v.Type == sexp.VString {
		return v.String
	}
	return sexp.Serialize(v)
}

func (c *CLI) route(head string, args []sexp.V) (string, error) {
	switch head {
	case "llm":
		return c.routeLLM(args)
	case "dbg":
		return c.routeDbg(args)
	case "log":
		return c.routeLog(args)
	case "config":
		return c.routeConfig(args)
	case "help":
		return helpText, nil
	case "exit", "quit":
		c.done = true
		return "Goodbye!", nil
	}
	panic("unhandled routed command")
}

func (c *CLI) routeLLM(args []sexp.V) (string, error) {
	if c.LLM == nil {
		return "", fmt.Errorf("LLM engine not available")
	}
	if len(args) == 0 {
		return "", fmt.Errorf("llm requires a prompt")
	}

	args, err := c.evalArgs(args)
	if err != nil {
		return "", err
	}
	if args[0].Type != sexp.VString {
		return "", fmt.Errorf("llm prompt must be a string")
	}

	request := llm.Request{Prompt: args[0].String}
	for _, arg := range args[1:] {
		request.Context = append(request.Context, asText(arg))
	}

	c.printInfo("sending request to LLM...")
	response, err := c.LLM.Complete(request)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("LLM response (%s, %dms):\n%s",
		response.Provider, response.Elapsed.Milliseconds(),
		response.Content), nil
}

func (c *CLI) routeDbg(args []sexp.V) (string, error) {
	if c.Bridge == nil {
		return "", fmt.Errorf("debugger bridge not available")
	}
	if len(args) == 0 {
		return "", fmt.Errorf("dbg requires a command string")
	}

	args, err := c.evalArgs(args)
	if err != nil {
		return "", err
	}
	if args[0].Type != sexp.VString {
		return "", fmt.Errorf("dbg command must be a string")
	}
	return c.Bridge.Exec(args[0].String)
}

func (c *CLI) routeLog(args []sexp.V) (string, error) {
	args, err := c.evalArgs(args)
	if err != nil {
		return "", err
	}

	level := logbook.Info
	if len(args) >= 2 && args[0].Type == sexp.VString {
		if parsed, err := logbook.ParseLevel(args[0].String); err == nil {
			level, args = parsed, args[1:]
		}
	}
	if len(args) != 1 || args[0].Type != sexp.VString ||
		args[0].String == "" {
		return "", fmt.Errorf("log requires a message")
	}

	c.Log.Logf(level, "%s", args[0].String)
	return "Logged: " + args[0].String, nil
}

func (c *CLI) routeConfig(args []sexp.V) (string, error) {
	if c.Config == nil {
		return "", fmt.Errorf("configuration not available")
	}

	args, err := c.evalArgs(args)
	if err != nil {
		return "", err
	}
	for _, arg := range args {
		if arg.Type != sexp.VString {
			return "", fmt.Errorf("config arguments must be strings")
		}
	}

	switch len(args) {
	case 0:
		return c.configSummary(), nil
	case 1:
		return c.Config.GetString(args[0].String)
	case 2:
		if err := c.Config.SetString(
			args[0].String, args[1].String); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", args[0].String, args[1].String), nil
	}
	return "", fmt.Errorf("config takes at most a key and a value")
}

func (c *CLI) configSummary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current configuration:\n")
	fmt.Fprintf(&sb, "  LLM providers: %d\n", len(c.Config.Providers))
	fmt.Fprintf(&sb, "  Default provider: %s\n", c.Config.DefaultProvider)
	fmt.Fprintf(&sb, "  Debugger: %s:%d\n",
		c.Config.Debugger.Host, c.Config.Debugger.Port)
	fmt.Fprintf(&sb, "  Log level: %s", c.Config.Log.Level)
	return sb.String()
}

// --- Colon commands ----------------------------------------------------------

const helpText = `mcpd - scriptable debugging assistant

Built-in commands (prefix with :):
  :help               - Show this help message
  :quit, :exit        - Exit the program
  :clear              - Clear the screen
  :history            - Show command history
  :session            - Show or set session variables
  :config             - Show configuration
  :status             - Show system status
  :connect            - Connect to debugger
  :disconnect         - Disconnect from debugger

S-expression commands:
  (llm "prompt")      - Send prompt to LLM
  (dbg "command")     - Execute debugger command
  (log "message")     - Log a message
  (+ 1 2 3)           - Arithmetic operations
  (read-memory a n)   - Read memory from debugger

Example session:
  > :connect
  > (dbg "bp main")
  > (llm "Explain this assembly code" (dbg "disasm main"))`

func (c *CLI) builtin(name string, args []string) (string, error) {
	switch name {
	case "help":
		return helpText, nil
	case "quit", "exit":
		c.done = true
		return "Goodbye!", nil
	case "clear":
		fmt.Fprint(c.Stdout, "\x1b[2J\x1b[H")
		return "", nil
	case "history":
		var sb strings.Builder
		fmt.Fprintf(&sb, "Command history (%d entries):", len(c.history))
		for i, entry := range c.history {
			fmt.Fprintf(&sb, "\n  %d: %s", i+1, entry)
		}
		return sb.String(), nil
	case "session":
		return c.builtinSession(args)
	case "config":
		if c.Config == nil {
			return "", fmt.Errorf("configuration not available")
		}
		return c.configSummary(), nil
	case "status":
		return c.builtinStatus(), nil
	case "connect":
		return c.builtinConnect()
	case "disconnect":
		if c.Bridge == nil {
			return "", fmt.Errorf("debugger bridge not available")
		}
		if err := c.Bridge.Close(); err != nil {
			return "", err
		}
		return "Disconnected", nil
	}
	return "", fmt.Errorf("unknown command :%s, try :help", name)
}

func (c *CLI) builtinSession(args []string) (string, error) {
	switch {
	case len(args) == 0:
		names := make([]string, 0, len(c.session))
		for name := range c.session {
			names = append(names, name)
		}
		sort.Strings(names)

		var sb strings.Builder
		fmt.Fprintf(&sb,
			"Session variables (%d entries):", len(c.session))
		for _, name := range names {
			fmt.Fprintf(&sb, "\n  %s = %s",
				name, sexp.Serialize(c.session[name]))
		}
		return sb.String(), nil

	case len(args) == 1 && args[0] == "clear":
		c.session = make(map[string]sexp.V)
		return "Session cleared", nil

	case len(args) >= 2:
		parsed, err := sexp.Parse(strings.Join(args[1:], " "))
		if err != nil {
			return "", err
		}
		value, err := c.Engine.EvaluateIn(parsed, c.session)
		if err != nil {
			return "", err
		}
		c.session[args[0]] = value
		return fmt.Sprintf("%s = %s",
			args[0], sexp.Serialize(value)), nil
	}
	return "", fmt.Errorf("usage: :session [clear | NAME EXPRESSION]")
}

func (c *CLI) builtinStatus() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "mcpd status:\n")
	fmt.Fprintf(&sb, "  Version: %s\n", Version)

	if c.Bridge != nil {
		state := "disconnected"
		if c.Bridge.Connected() {
			state = "connected to " + c.Bridge.Addr()
		}
		fmt.Fprintf(&sb, "  Debugger: %s\n", state)
	}
	if c.LLM != nil {
		fmt.Fprintf(&sb, "  LLM providers: %s\n",
			strings.Join(c.LLM.Providers(), ", "))
	}
	fmt.Fprintf(&sb, "  History size: %d\n", len(c.history))
	fmt.Fprintf(&sb, "  Session variables: %d", len(c.session))
	return sb.String()
}

func (c *CLI) builtinConnect() (string, error) {
	if c.Bridge == nil {
		return "", fmt.Errorf("debugger bridge not available")
	}
	if err := c.Bridge.Connect(); err != nil {
		return "", err
	}

	// The placeholder functions only become real
	// once there is something to talk to.
	dbg.RegisterNatives(c.Engine, c.Bridge)
	return "Connected to " + c.Bridge.Addr(), nil
}

// --- Modes -------------------------------------------------------------------

func (c *CLI) complete(line string, pos int) (
	head string, completions []string, tail string) {
	tail = string([]rune(line)[pos:])

	lastSpace := strings.LastIndexAny(string([]rune(line)[:pos]), " ()\n")
	if lastSpace > -1 {
		head, line = line[:lastSpace+1], line[lastSpace+1:]
	}

	c.mu.Lock()
	candidates := append(c.Engine.Natives(), c.Engine.Variables()...)
	for name := range c.session {
		candidates = append(candidates, name)
	}
	for name := range routed {
		candidates = append(candidates, name)
	}
	for _, name := range colonCommands {
		candidates = append(candidates, ":"+name)
	}
	c.mu.Unlock()

	for _, name := range candidates {
		if strings.HasPrefix(strings.ToLower(name), line) {
			completions = append(completions, name)
		}
	}
	sort.Strings(completions)
	return
}

func (c *CLI) prompt() string {
	if c.Bridge != nil && c.Bridge.Connected() {
		return "mcp[dbg]> "
	}
	return "mcp> "
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFilename)
}

// Run drives the interactive prompt until quit or EOF.
func (c *CLI) Run() error {
	if !c.Quiet {
		fmt.Fprintf(c.Stdout, "%s\nVersion: %s\n%s\n\n",
			c.colorize("\x1b[36m", "=== mcpd ==="), Version,
			"Type :help for help, :quit to exit")
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetWordCompleter(c.complete)
	line.SetMultiLineMode(true)
	line.SetTabCompletionStyle(liner.TabPrints)

	if path := historyPath(); path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(path); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	for !c.Done() {
		input, err := line.Prompt(c.prompt())
		if err == liner.ErrPromptAborted || err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		line.AppendHistory(input)
		if output, err := c.Process(input); err != nil {
			c.printError(err)
		} else if output != "" {
			fmt.Fprintln(c.Stdout, output)
		}
	}
	fmt.Fprintln(c.Stdout)
	return nil
}

// RunCommand processes a single command and prints its result.
func (c *CLI) RunCommand(command string) error {
	output, err := c.Process(command)
	if err != nil {
		c.printError(err)
		return err
	}
	if output != "" {
		fmt.Fprintln(c.Stdout, output)
	}
	return nil
}

// RunScript processes a file line by line, skipping blank lines
// and ";" comments, stopping at the first error.
func (c *CLI) RunScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), sexp.MaxInput)

	lineno := 0
	for scanner.Scan() {
		lineno++
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, ";") {
			continue
		}

		output, err := c.Process(input)
		if err != nil {
			c.printError(err)
			return fmt.Errorf("%s:%d: %w", path, lineno, err)
		}
		if output != "" {
			fmt.Fprintln(c.Stdout, output)
		}
		if c.Done() {
			break
		}
	}
	return scanner.Err()
}
