package httpgate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stealthrocket/httpgate/internal/assert"
	"github.com/stealthrocket/httpgate/internal/httpgate"
)

func TestNewLogger(t *testing.T) {
	out := new(bytes.Buffer)
	logger, err := httpgate.NewLogger(httpgate.LogConfig{Level: "info", Format: "json"}, out)
	assert.OK(t, err)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.OK(t, logger.Sync())

	var entry map[string]any
	assert.OK(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, entry["msg"], any("shown"))
	assert.Equal(t, entry["logger"], any("httpgate"))

	_, err = httpgate.NewLogger(httpgate.LogConfig{Level: "loud"}, out)
	assert.NotEqual(t, err, nil)
}

func TestTracing(t *testing.T) {
	out := new(bytes.Buffer)
	tracing, err := httpgate.NewTracing(true, "test", out)
	assert.OK(t, err)

	_, span := tracing.Tracer().Start(context.Background(), "cycle")
	span.End()
	assert.OK(t, tracing.Shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name":"cycle"`)

	var disabled *httpgate.Tracing
	_, span = disabled.Tracer().Start(context.Background(), "cycle")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.OK(t, disabled.Shutdown(context.Background()))
}
