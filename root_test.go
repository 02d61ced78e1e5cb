package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stealthrocket/httpgate/internal/assert"
)

var rootTests = tests{
	"invoking httpgate without a command prints the introduction message": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "httpgate - HTTP/1.x application gateway\n")
		assert.Equal(t, stderr, "")
	},

	"show the httpgate help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the httpgate help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate <command> ")
		assert.Equal(t, stderr, "")
	},

	"root options are accepted before the command": func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "other.yaml")
		assert.OK(t, os.WriteFile(path, []byte("policy: round-robin\n"), 0666))

		stdout, stderr, exitCode := invoke(t, "--config", path, "config", "-o", "yaml")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
		assert.Contains(t, stdout, "policy: round-robin\n")
	},

	"command options are left to the command": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "version", "--help")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "Usage:\thttpgate version\n\nOptions:\n   -h, --help  Show this usage information\n")
		assert.Equal(t, stderr, "")
	},

	"passing an unsupported flag causes an error": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "--whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "httpgate: flag provided but not defined")
	},
}

var unknownTests = tests{
	"an error is reported when invoking an unknown command": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "httpgate whatever: unknown command\n")
	},
}

var helpTests = tests{
	"calling help with an unknown command causes an error": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "httpgate help whatever: unknown command\n")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, _, exitCode := invoke(t, "help", "-_")
		assert.Equal(t, exitCode, 2)
	},

	"show the help command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the help command help after a command name": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "serve", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate <command> ")
		assert.Equal(t, stderr, "")
	},

	"httpgate help config": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "config")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate config ")
		assert.Equal(t, stderr, "")
	},

	"httpgate help help": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate <command> ")
		assert.Equal(t, stderr, "")
	},

	"httpgate help serve": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "serve")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate serve ")
		assert.Equal(t, stderr, "")
	},

	"httpgate help version": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "help", "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate version\n")
		assert.Equal(t, stderr, "")
	},
}

var versionTests = tests{
	"show the version command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "version", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate version\n")
		assert.Equal(t, stderr, "")
	},

	"the version starts with the prefix httpgate": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "httpgate ")
		assert.Equal(t, stderr, "")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, _, exitCode := invoke(t, "version", "-_")
		assert.Equal(t, exitCode, 2)
	},
}
