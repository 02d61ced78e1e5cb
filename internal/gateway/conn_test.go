package gateway_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stealthrocket/httpgate/internal/assert"
	"github.com/stealthrocket/httpgate/internal/gateway"
)

type conn struct {
	io.Reader
	io.Writer
}

type testGateway struct {
	*gateway.Gateway
	logs  *observer.ObservedLogs
	spans *tracetest.SpanRecorder
}

func newGateway(t *testing.T, undeclared gateway.FramingMode, handlers ...gateway.Handler) *testGateway {
	d, err := gateway.NewDispatcher(gateway.RoundRobin(), handlers...)
	assert.OK(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return &testGateway{
		Gateway: &gateway.Gateway{
			Dispatcher:     d,
			Undeclared:     undeclared,
			MaxHeaderBytes: 256,
			Logger:         zap.New(core),
			Tracer:         provider.Tracer("test"),
		},
		logs:  logs,
		spans: spans,
	}
}

func (g *testGateway) serve(t *testing.T, input string) (string, error) {
	out := new(bytes.Buffer)
	err := g.ServeConn(context.Background(), conn{strings.NewReader(input), out}, "127.0.0.1:4242")
	return out.String(), err
}

func echoPath(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
	if err := start("200 OK", gateway.Headers{{"Content-Type", "text/plain"}}); err != nil {
		return nil, err
	}
	return gateway.Chunks{[]byte(req.Path()), []byte("\n")}, nil
}

func TestServeConnKeepAlive(t *testing.T) {
	g := newGateway(t, gateway.Chunked, echoPath)

	wire, err := g.serve(t, ""+
		"POST /one HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"+
		"GET /two HTTP/1.1\r\n\r\n"+
		"GET /three HTTP/1.1\r\nConnection: close\r\n\r\n"+
		"GET /ignored HTTP/1.1\r\n\r\n")
	assert.OK(t, err)

	assert.Equal(t, wire, ""+
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nTransfer-Encoding: chunked\r\n\r\n4\r\n/one\r\n1\r\n\n\r\n0\r\n\r\n"+
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nTransfer-Encoding: chunked\r\n\r\n4\r\n/two\r\n1\r\n\n\r\n0\r\n\r\n"+
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n6\r\n/three\r\n1\r\n\n\r\n0\r\n\r\n")

	assert.Equal(t, g.logs.FilterMessage("request served").Len(), 3)

	spans := g.spans.Ended()
	assert.Equal(t, len(spans), 3)
	for _, span := range spans {
		assert.Equal(t, span.Name(), "httpgate.request")
		assert.Equal(t, span.Status().Code, codes.Unset)
	}
	assert.True(t, hasAttribute(spans[1].Attributes(), attribute.String("url.path", "/two")))
	assert.True(t, hasAttribute(spans[1].Attributes(), attribute.Int("http.response.status_code", 200)))
}

func TestServeConnCloseDelimited(t *testing.T) {
	g := newGateway(t, gateway.CloseDelimited, echoPath)

	wire, err := g.serve(t, "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	assert.OK(t, err)
	assert.Equal(t, wire, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n/a\n")
}

func TestServeConnHandlerCloses(t *testing.T) {
	g := newGateway(t, gateway.Chunked, func(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
		if err := start("200 OK", gateway.Headers{{"Content-Length", "3"}, {"Connection", "close"}}); err != nil {
			return nil, err
		}
		return gateway.Blob(req.Path()), nil
	})

	wire, err := g.serve(t, "GET /a1 HTTP/1.1\r\n\r\nGET /b2 HTTP/1.1\r\n\r\n")
	assert.OK(t, err)
	assert.Equal(t, wire, "HTTP/1.1 200 OK\r\nContent-Length: 3\r\nConnection: close\r\n\r\n/a1")
	assert.Equal(t, g.logs.FilterMessage("request served").Len(), 1)
}

func TestServeConnNoContent(t *testing.T) {
	g := newGateway(t, gateway.Chunked, func(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
		return gateway.Blob(nil), start("204 No Content", nil)
	})

	wire, err := g.serve(t, "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	assert.OK(t, err)
	assert.Equal(t, wire, "HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n")
}

func TestServeConnFallbackKeepsConnection(t *testing.T) {
	failing := func(*gateway.Request, gateway.StartFunc) (gateway.Body, error) {
		return nil, errors.New("boom")
	}
	g := newGateway(t, gateway.Chunked, failing, echoPath)

	wire, err := g.serve(t, "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	assert.OK(t, err)
	assert.HasPrefix(t, wire, "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 0\r\n\r\nHTTP/1.1 200 OK\r\n")

	failures := g.logs.FilterMessage("request failed").All()
	assert.Equal(t, len(failures), 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, fields["fault"], any("HandlerRaised"))
	assert.Equal(t, fields["status"], any(int64(500)))
	assert.Equal(t, fields["path"], any("/a"))

	spans := g.spans.Ended()
	assert.Equal(t, len(spans), 2)
	assert.Equal(t, spans[0].Status().Code, codes.Error)
	assert.Equal(t, spans[0].Status().Description, "HandlerRaised")
	assert.Equal(t, len(spans[0].Events()), 1)
}

func TestServeConnBodyFault(t *testing.T) {
	g := newGateway(t, gateway.Chunked, func(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
		if err := start("200 OK", gateway.Headers{{"Content-Length", "10"}}); err != nil {
			return nil, err
		}
		return gateway.Blob("short"), nil
	})

	wire, err := g.serve(t, "GET / HTTP/1.1\r\n\r\nGET / HTTP/1.1\r\n\r\n")
	assert.Error(t, err, gateway.ErrTruncatedBody)
	assert.Equal(t, wire, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nshort")

	failures := g.logs.FilterMessage("request failed").All()
	assert.Equal(t, len(failures), 1)
	assert.Equal(t, failures[0].ContextMap()["fault"], any("TruncatedBody"))
	assert.Equal(t, failures[0].ContextMap()["bytes"], any(int64(5)))
}

func TestServeConnRejectsMalformedRequests(t *testing.T) {
	tests := []struct {
		scenario string
		input    string
		status   string
		err      error
	}{
		{
			scenario: "bad request line",
			input:    "NOT-HTTP\r\n\r\n",
			status:   "HTTP/1.1 400 Bad Request\r\n",
			err:      gateway.ErrMalformedRequest,
		},
		{
			scenario: "header too large",
			input:    "GET / HTTP/1.1\r\nCookie: " + strings.Repeat("a", 300) + "\r\n\r\n",
			status:   "HTTP/1.1 431 Request Header Fields Too Large\r\n",
			err:      gateway.ErrRequestHeaderTooLarge,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			g := newGateway(t, gateway.Chunked, echoPath)

			wire, err := g.serve(t, test.input)
			assert.Error(t, err, test.err)
			assert.HasPrefix(t, wire, test.status)
			assert.Contains(t, wire, "Connection: close\r\n")
			assert.Equal(t, g.logs.FilterMessage("request rejected").Len(), 1)
			assert.Equal(t, len(g.spans.Ended()), 0)
		})
	}
}

func TestServeConnEmpty(t *testing.T) {
	g := newGateway(t, gateway.Chunked, echoPath)
	wire, err := g.serve(t, "")
	assert.OK(t, err)
	assert.Equal(t, wire, "")
}

func TestServeConnCanceled(t *testing.T) {
	g := newGateway(t, gateway.Chunked, echoPath)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := new(bytes.Buffer)
	err := g.ServeConn(ctx, conn{strings.NewReader("GET / HTTP/1.1\r\n\r\n"), out}, "")
	assert.Error(t, err, context.Canceled)
	assert.Equal(t, out.Len(), 0)
}

func hasAttribute(attrs []attribute.KeyValue, want attribute.KeyValue) bool {
	for _, attr := range attrs {
		if attr == want {
			return true
		}
	}
	return false
}
