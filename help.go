package main

import (
	"context"
	"fmt"
)

const helpUsage = `
Usage:	httpgate <command> [options]

Server Commands:
   serve    Accept connections and serve requests with the configured applications

Other Commands:
   config   View the httpgate configuration
   help     Show usage information about httpgate commands
   version  Show the httpgate version information

Global Options:
   -c, --config path  Path to the httpgate configuration file (overrides HTTPGATECONFIG)
   -h, --help         Show usage information

For a description of each command, run 'httpgate help <command>'.`

func (c *command) help(ctx context.Context, args []string) error {
	flagSet := c.newFlagSet("httpgate help", helpUsage)
	args, err := c.parseFlags(flagSet, args)
	if err != nil {
		return err
	}

	var cmd string
	var msg string

	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "config":
		msg = configUsage
	case "help", "":
		msg = helpUsage
	case "serve":
		msg = serveUsage
	case "version":
		msg = versionUsage
	default:
		return usageError("httpgate help %s: unknown command", cmd)
	}

	fmt.Fprintln(c.stdout, msg[1:])
	return nil
}
