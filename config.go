package main

import (
	"context"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/httpgate/internal/httpgate"
)

const configUsage = `
Usage:	httpgate config [options]

   Print the configuration httpgate runs with. Without a configuration file,
   the default configuration is printed.

Options:
   -c, --config path    Path to the httpgate configuration file (overrides HTTPGATECONFIG)
   -h, --help           Show usage information
   -o, --output format  Output format, one of: text, json, yaml
`

func (c *command) config(ctx context.Context, args []string) error {
	output := outputFormat("text")

	flagSet := c.newFlagSet("httpgate config", configUsage)
	customVar(flagSet, &output, "o", "output")

	if _, err := c.parseFlags(flagSet, args); err != nil {
		return err
	}

	config, err := httpgate.LoadConfig()
	if err != nil {
		return err
	}

	switch output {
	case "json":
		e := json.NewEncoder(c.stdout)
		e.SetEscapeHTML(false)
		e.SetIndent("", "  ")
		return e.Encode(config)
	case "yaml":
		e := yaml.NewEncoder(c.stdout)
		e.SetIndent(2)
		if err := e.Encode(config); err != nil {
			return err
		}
		return e.Close()
	default:
		r, _, err := httpgate.OpenConfig()
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(c.stdout, r)
		return err
	}
}
