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

// Program mcpd is a scriptable debugging assistant: an S-expression
// shell wired to LLM providers and a remote debugger.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"janouch.name/mcpd/cli"
	"janouch.name/mcpd/config"
	"janouch.name/mcpd/dbg"
	"janouch.name/mcpd/llm"
	"janouch.name/mcpd/logbook"
	"janouch.name/mcpd/secret"
	"janouch.name/mcpd/sexp"
)

var (
	configPath  = flag.String("config", "", "configuration file path")
	command     = flag.String("c", "", "execute a single command and exit")
	secretsPath = flag.String("secrets", "",
		"encrypted credential store (passphrase in MCPD_PASSPHRASE)")
	quiet   = flag.Bool("q", false, "suppress informational output")
	version = flag.Bool("version", false, "print version and exit")
)

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadSecrets overlays stored API keys onto the configuration,
// for providers that don't have one set already.
func loadSecrets(conf *config.Config) error {
	passphrase := os.Getenv("MCPD_PASSPHRASE")
	if passphrase == "" {
		return errors.New("MCPD_PASSPHRASE is not set")
	}

	store, err := secret.Open(*secretsPath, passphrase)
	if err != nil {
		return err
	}
	defer store.Close()

	for name, provider := range conf.Providers {
		if provider.APIKey != "" {
			continue
		}
		key, err := store.Get(name)
		if errors.Is(err, secret.ErrNoCredential) {
			continue
		} else if err != nil {
			return err
		}
		provider.APIKey = key
		conf.Providers[name] = provider
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [OPTION]... [SCRIPT]\n\nOptions:\n",
			os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *version {
		fmt.Println("mcpd " + cli.Version)
		return
	}
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	conf := config.Default()
	if *configPath != "" {
		var err error
		if conf, err = config.Load(*configPath); err != nil {
			fatal("configuration: %s", err)
		}
	}
	if *secretsPath != "" {
		if err := loadSecrets(conf); err != nil {
			fatal("secrets: %s", err)
		}
	}

	level, err := logbook.ParseLevel(conf.Log.Level)
	if err != nil {
		fatal("configuration: %s", err)
	}
	log, err := logbook.New(logbook.Options{
		Level:   level,
		Path:    conf.Log.FilePath,
		MaxSize: int64(conf.Log.MaxSizeMB) << 20,
	})
	if err != nil {
		fatal("logging: %s", err)
	}
	defer log.Close()

	engines := llm.NewEngine(log)
	if err := engines.Configure(conf); err != nil {
		fatal("LLM: %s", err)
	}

	c := cli.New(cli.Options{
		Engine: sexp.New(),
		LLM:    engines,
		Bridge: dbg.FromConfig(conf, log),
		Config: conf,
		Log:    log,
		Quiet:  *quiet,
	})

	switch {
	case *command != "":
		if c.RunCommand(*command) != nil {
			os.Exit(1)
		}
	case flag.NArg() == 1:
		if err := c.RunScript(flag.Arg(0)); err != nil {
			os.Exit(1)
		}
	default:
		if err := c.Run(); err != nil {
			fatal("%s", err)
		}
	}
}
