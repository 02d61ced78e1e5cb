package apps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/multierr"

	"github.com/stealthrocket/httpgate/internal/compress"
	"github.com/stealthrocket/httpgate/internal/gateway"
	"github.com/stealthrocket/httpgate/internal/stream"
)

var errMalformedHeader = errors.New("headers must be pairs of name and value")

// Config declares a static application in the configuration file.
//
// A string body is served as a single blob. A list body is served as a
// sequence of chunks; its elements must be strings, any other value aborts
// the response when it is reached. Lazy bodies are produced one element at a
// time, waiting Delay between elements.
type Config struct {
	Name    string     `json:"name"              yaml:"name"`
	Status  string     `json:"status"            yaml:"status"`
	Headers [][]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    any        `json:"body,omitempty"    yaml:"body,omitempty"`
	Lazy    bool       `json:"lazy,omitempty"    yaml:"lazy,omitempty"`
	Delay   string     `json:"delay,omitempty"   yaml:"delay,omitempty"`
	Gzip    bool       `json:"gzip,omitempty"    yaml:"gzip,omitempty"`
}

// Load constructs the handlers of the declared applications. The demo
// handlers are returned when no applications are declared.
func Load(configs []Config) ([]gateway.Handler, error) {
	if len(configs) == 0 {
		return Demo(), nil
	}
	handlers := make([]gateway.Handler, 0, len(configs))
	var errs error
	for i, c := range configs {
		h, err := New(c)
		if err != nil {
			name := c.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			errs = multierr.Append(errs, fmt.Errorf("app %s: %w", name, err))
			continue
		}
		handlers = append(handlers, h)
	}
	if errs != nil {
		return nil, errs
	}
	return handlers, nil
}

// New constructs the handler of a declared application. The status line and
// headers are validated eagerly so configuration mistakes are reported at
// startup rather than as failed responses.
func New(c Config) (gateway.Handler, error) {
	status, err := gateway.ParseStatus(c.Status)
	if err != nil {
		return nil, err
	}

	headers := make(gateway.Headers, 0, len(c.Headers))
	for _, h := range c.Headers {
		if len(h) != 2 {
			return nil, fmt.Errorf("%w: %q", errMalformedHeader, h)
		}
		headers = append(headers, gateway.Header{Name: h[0], Value: h[1]})
	}
	if err := headers.Validate(); err != nil {
		return nil, err
	}
	if _, err := gateway.DecideFraming(headers, gateway.CloseDelimited); err != nil {
		return nil, err
	}

	var delay time.Duration
	if c.Delay != "" {
		if delay, err = time.ParseDuration(c.Delay); err != nil {
			return nil, fmt.Errorf("delay: %w", err)
		}
	}

	var body func(*gateway.Request) gateway.Body
	switch v := c.Body.(type) {
	case nil:
		body = func(*gateway.Request) gateway.Body { return gateway.Blob(nil) }
	case string:
		body = func(*gateway.Request) gateway.Body { return gateway.Blob(v) }
	case []any:
		body = func(req *gateway.Request) gateway.Body {
			if c.Lazy {
				return gateway.Values(&delayReader{ctx: req.Context(), values: v, delay: delay})
			}
			return gateway.Values(stream.NewReader(v...))
		}
	default:
		return nil, fmt.Errorf("%w: body of type %T", gateway.ErrInvalidChunkType, c.Body)
	}

	line := status.String()
	handler := func(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
		if err := start(line, headers); err != nil {
			return nil, err
		}
		return body(req), nil
	}
	if c.Gzip {
		return compress.Gzip(handler, gzip.DefaultCompression), nil
	}
	return handler, nil
}

// delayReader produces values one at a time, pausing between them.
type delayReader struct {
	ctx     context.Context
	values  []any
	delay   time.Duration
	started bool
}

func (r *delayReader) Read(values []any) (int, error) {
	if len(r.values) == 0 {
		return 0, io.EOF
	}
	if len(values) == 0 {
		return 0, nil
	}
	if r.started && r.delay > 0 {
		t := time.NewTimer(r.delay)
		select {
		case <-t.C:
		case <-r.ctx.Done():
			t.Stop()
			return 0, context.Cause(r.ctx)
		}
	}
	r.started = true
	values[0], r.values = r.values[0], r.values[1:]
	return 1, nil
}
