package main

// Notes on program structure
// --------------------------
//
// httpgate uses subcommands to invoke specific functionalities of the program.
// Each subcommand is implemented by a function named after the command, in a
// file of the same name (e.g. the "help" command is implemented by the help
// function in help.go).
//
// The usage message for each command is declared by a constant starting with
// the command name and followed by the suffix "Usage". For example, the usage
// message for the "help" command is declared by the constant helpUsage.
//
// The usage message contains a "Usage:	httpgate <command>" section presenting
// the structure of the command. Note the tabulation separating "Usage:" and
// "httpgate".

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/stealthrocket/httpgate/internal/httpgate"
	"github.com/stealthrocket/httpgate/internal/human"
)

const rootUsage = `httpgate - HTTP/1.x application gateway

   httpgate accepts HTTP/1.0 and HTTP/1.1 connections and serves each request
   with one of its registered applications, framing the responses they produce
   on the wire.

Example:

   $ httpgate serve -L :8080
   {"level":"info","logger":"httpgate","msg":"listening","addr":"[::]:8080"}
   ...

   $ curl -i localhost:8080
   HTTP/1.1 200 ok
   ...

For a list of commands available, run 'httpgate help'.`

// command carries the output streams of a command invocation.
type command struct {
	stdout io.Writer
	stderr io.Writer
}

// root is the httpgate entrypoint.
func root(ctx context.Context, stdout, stderr io.Writer, args ...string) int {
	if path, ok := os.LookupEnv("HTTPGATECONFIG"); ok {
		httpgate.ConfigPath = human.Path(path)
	}

	c := &command{stdout: stdout, stderr: stderr}

	// The root flag set stops at the first non-flag argument; the remaining
	// arguments belong to the subcommand.
	flagSet := c.newFlagSet("httpgate", helpUsage)
	err := c.parse(flagSet, args)
	if err == nil {
		if args = flagSet.Args(); len(args) == 0 {
			fmt.Fprintln(stdout, rootUsage)
			return 0
		}
	}

	cmd := "httpgate"
	if err == nil {
		cmd, args = args[0], args[1:]
		switch cmd {
		case "config":
			err = c.config(ctx, args)
		case "help":
			err = c.help(ctx, args)
		case "serve":
			err = c.serve(ctx, args)
		case "version":
			err = c.version(ctx, args)
		default:
			err = c.unknown(ctx, cmd)
		}
	}

	var code exitCode
	var use usage
	switch {
	case err == nil:
		return 0
	case errors.As(err, &code):
		return int(code)
	case errors.As(err, &use):
		fmt.Fprintf(stderr, "%s\n", use)
		return 2
	default:
		fmt.Fprintf(stderr, "ERR: httpgate %s: %s\n", cmd, err)
		return 1
	}
}

// exitCode is an error type returned from command functions to indicate the
// exit code that should be returned by the program.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit: %d", e)
}

// usage is an error type returned from command functions to indicate a usage
// error.
//
// Usage errors cause the program to exit with status code 2.
type usage string

func usageError(msg string, args ...any) error {
	return usage(fmt.Sprintf(msg, args...))
}

func (e usage) Error() string {
	return string(e)
}

func setEnum[T ~string](enum *T, typ string, value string, options ...string) error {
	for _, option := range options {
		if option == value {
			*enum = T(option)
			return nil
		}
	}
	return fmt.Errorf("unsupported %s: %q (not one of %s)", typ, value, strings.Join(options, ", "))
}

type outputFormat string

func (o outputFormat) String() string {
	return string(o)
}

func (o *outputFormat) Set(value string) error {
	return setEnum(o, "output format", value, "text", "json", "yaml")
}

type policy string

func (p policy) String() string {
	return string(p)
}

func (p *policy) Set(value string) error {
	return setEnum(p, "policy", value, "random", "round-robin", "first")
}

func (c *command) newFlagSet(cmd, usage string) *flag.FlagSet {
	usage = strings.TrimSpace(usage)
	flagSet := flag.NewFlagSet(cmd, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.Usage = func() { fmt.Fprintln(c.stdout, usage) }
	customVar(flagSet, &httpgate.ConfigPath, "c", "config")
	return flagSet
}

// parse runs a single pass of f over args. The flag package invokes the usage
// function on every parsing error, so it is silenced during the pass and
// only printed when help was asked for.
//
// Asking for help returns a zero exit code, unknown options are reported as
// usage errors.
func (c *command) parse(f *flag.FlagSet, args []string) error {
	usage := f.Usage
	f.Usage = func() {}
	defer func() { f.Usage = usage }()

	switch err := f.Parse(args); {
	case errors.Is(err, flag.ErrHelp):
		usage()
		return exitCode(0)
	case err != nil:
		return usageError("%s: %s", f.Name(), err)
	default:
		return nil
	}
}

// parseFlags is a greedy parser which consumes all options known to f and
// returns the remaining arguments.
func (c *command) parseFlags(f *flag.FlagSet, args []string) ([]string, error) {
	var unknownArgs []string
	for {
		if err := c.parse(f, args); err != nil {
			return nil, err
		}
		if args = f.Args(); len(args) == 0 {
			return unknownArgs, nil
		}
		i := slices.IndexFunc(args, func(s string) bool {
			return strings.HasPrefix(s, "-")
		})
		if i < 0 {
			i = len(args)
		} else if args[i] == "-" {
			i++
		}
		unknownArgs = append(unknownArgs, args[:i]...)
		args = args[i:]
	}
}

func boolVar(f *flag.FlagSet, dst *bool, name string, alias ...string) {
	f.BoolVar(dst, name, *dst, "")
	for _, name := range alias {
		f.BoolVar(dst, name, *dst, "")
	}
}

func stringVar(f *flag.FlagSet, dst *string, name string, alias ...string) {
	f.StringVar(dst, name, *dst, "")
	for _, name := range alias {
		f.StringVar(dst, name, *dst, "")
	}
}

func customVar(f *flag.FlagSet, dst flag.Value, name string, alias ...string) {
	f.Var(dst, name, "")
	for _, name := range alias {
		f.Var(dst, name, "")
	}
}
