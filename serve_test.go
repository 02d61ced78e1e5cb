package main

import (
	"context"
	"testing"
	"time"

	"github.com/stealthrocket/httpgate/internal/assert"
)

var serveTests = tests{
	"show the serve command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "serve", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate serve ")
		assert.Equal(t, stderr, "")
	},

	"an unknown policy causes an error": func(t *testing.T) {
		_, stderr, exitCode := invoke(t, "serve", "--policy", "fastest")
		assert.Equal(t, exitCode, 2)
		assert.Contains(t, stderr, `unsupported policy: "fastest"`)
	},

	"unexpected arguments cause an error": func(t *testing.T) {
		_, stderr, exitCode := invoke(t, "serve", "app.py")
		assert.Equal(t, exitCode, 2)
		assert.Contains(t, stderr, "unexpected arguments")
	},

	"an invalid listen address causes an error": func(t *testing.T) {
		_, stderr, exitCode := invoke(t, "serve", "-L", "127.0.0.1:http-alt-nope")
		assert.Equal(t, exitCode, 1)
		assert.HasPrefix(t, stderr, "ERR: httpgate serve: ")
	},

	"the server stops when the context is canceled": func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, stderr, exitCode := invokeContext(t, ctx, "serve", "--chunked", "--policy", "round-robin")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
	},
}
