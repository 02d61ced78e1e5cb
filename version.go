package main

import (
	"context"
	"fmt"
	"runtime/debug"
)

const versionUsage = `
Usage:	httpgate version

Options:
   -h, --help  Show this usage information
`

func (c *command) version(ctx context.Context, args []string) error {
	flagSet := c.newFlagSet("httpgate version", versionUsage)
	if _, err := c.parseFlags(flagSet, args); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "httpgate %s\n", currentVersion())
	return nil
}

func currentVersion() string {
	version := "devel"
	if info, ok := debug.ReadBuildInfo(); ok {
		switch info.Main.Version {
		case "":
		case "(devel)":
		default:
			version = info.Main.Version
		}
	}
	return version
}
