package main

import (
	"context"
)

const unknownCommand = `httpgate %s: unknown command
For a list of commands available, run 'httpgate help'.`

func (c *command) unknown(ctx context.Context, cmd string) error {
	return usageError(unknownCommand, cmd)
}
