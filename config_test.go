package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stealthrocket/httpgate/internal/assert"
)

var configTests = tests{
	"show the config command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "config", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\thttpgate config ")
		assert.Equal(t, stderr, "")
	},

	"the text output is the content of the configuration file": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		b, err := os.ReadFile(os.Getenv("HTTPGATECONFIG"))
		assert.OK(t, err)
		assert.Equal(t, stdout, string(b))
	},

	"the json output includes default values": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "config", "-o", "json")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		var config map[string]any
		assert.OK(t, json.Unmarshal([]byte(stdout), &config))
		assert.Equal(t, config["policy"], any("first"))
		assert.Equal(t, config["undeclaredLength"], any("close"))
		assert.Equal(t, config["readTimeout"], any("30s"))
	},

	"the yaml output includes default values": func(t *testing.T) {
		stdout, stderr, exitCode := invoke(t, "config", "--output", "yaml")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
		assert.Contains(t, stdout, "policy: first\n")
		assert.Contains(t, stdout, "maxHeaderBytes: 1 MiB\n")
	},

	"the configuration path can be passed as an option": func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "other.yaml")
		assert.OK(t, os.WriteFile(path, []byte("policy: round-robin\n"), 0666))

		stdout, stderr, exitCode := invoke(t, "config", "-c", path, "-o", "yaml")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")
		assert.Contains(t, stdout, "policy: round-robin\n")
	},

	"an unsupported output format causes an error": func(t *testing.T) {
		_, stderr, exitCode := invoke(t, "config", "-o", "xml")
		assert.Equal(t, exitCode, 2)
		assert.Contains(t, stderr, "unsupported output format")
	},

	"an invalid configuration file causes an error": func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		assert.OK(t, os.WriteFile(path, []byte("policy: fastest\n"), 0666))

		_, stderr, exitCode := invoke(t, "config", "-c", path, "-o", "json")
		assert.Equal(t, exitCode, 1)
		assert.HasPrefix(t, stderr, "ERR: httpgate config: invalid configuration")
	},
}
