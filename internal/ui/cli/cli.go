package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const versionString = "1.0.0"

const usage = `usage: bindkey [--config path] [--verbose] <command> [flags] [args]

commands:
  index                 index the configured source roots
  resolve [keys...]     resolve keys and --handle path:line:col positions
  signature [keys...]   print the signature form of keys
  verify                re-decode every persisted key
  watch                 index, then re-index changed sources until interrupted

keys are read from standard input, one per line, when none are given.
`

var commands = map[string]bool{
	"index":     true,
	"resolve":   true,
	"signature": true,
	"verify":    true,
	"watch":     true,
}

type cliOptions struct {
	configPath string
	verbose    bool
	version    bool
	command    string
	handles    stringList
	json       bool
	args       []string
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var errUsage = errors.New("usage")

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("bindkey", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: bindkey.toml in the project root)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if opts.version {
		return opts, nil
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return cliOptions{}, errUsage
	}
	opts.command = rest[0]
	if !commands[opts.command] {
		fmt.Fprintf(stderr, "unknown command %q\n", opts.command)
		fs.Usage()
		return cliOptions{}, errUsage
	}

	sub := flag.NewFlagSet("bindkey "+opts.command, flag.ContinueOnError)
	sub.SetOutput(stderr)
	sub.BoolVar(&opts.json, "json", false, "Print results as JSON")
	if opts.command == "resolve" {
		sub.Var(&opts.handles, "handle", "Source position path:line:col to resolve (repeatable)")
	}
	if err := sub.Parse(rest[1:]); err != nil {
		return cliOptions{}, err
	}
	opts.args = sub.Args()

	switch opts.command {
	case "index", "verify", "watch":
		if len(opts.args) > 0 {
			return cliOptions{}, fmt.Errorf("%s takes no arguments", opts.command)
		}
	}
	return opts, nil
}
