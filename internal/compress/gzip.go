// Package compress implements response encodings applied on top of gateway
// handlers.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/http/httpguts"

	"github.com/stealthrocket/httpgate/internal/gateway"
	"github.com/stealthrocket/httpgate/internal/stream"
)

// Gzip wraps next so that its responses are gzip encoded for clients which
// accept it.
//
// The length of the encoded body is not known in advance, so Content-Length
// is removed from the headers of the wrapped handler and the gateway falls
// back to its undeclared framing. Responses which already carry a
// Content-Encoding are passed through unchanged.
//
// Each chunk produced by next is flushed through the encoder before the next
// one is pulled, lazy bodies keep streaming.
func Gzip(next gateway.Handler, level int) gateway.Handler {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return func(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
		if !acceptsGzip(req) {
			return next(req, start)
		}

		e := &encoder{level: level}
		body, err := next(req, e.start(start))
		if err != nil {
			return nil, err
		}
		chunks, err := gateway.Normalize(body)
		if err != nil {
			return nil, err
		}
		e.chunks = chunks
		return gateway.Lazy{Reader: e}, nil
	}
}

func acceptsGzip(req *gateway.Request) bool {
	return httpguts.HeaderValuesContainsToken(req.Header().Values("Accept-Encoding"), "gzip")
}

type encoder struct {
	level    int
	identity bool
	done     bool
	chunks   stream.ReadCloser[[]byte]
	buf      bytes.Buffer
	zw       *gzip.Writer
}

func (e *encoder) start(start gateway.StartFunc) gateway.StartFunc {
	return func(status string, headers gateway.Headers) error {
		if _, ok := headers.Get("Content-Encoding"); ok {
			if err := start(status, headers); err != nil {
				return err
			}
			e.identity = true
			return nil
		}
		encoded := append(headers.Without("Content-Length"),
			gateway.Header{Name: "Content-Encoding", Value: "gzip"},
			gateway.Header{Name: "Vary", Value: "Accept-Encoding"},
		)
		return start(status, encoded)
	}
}

func (e *encoder) Read(values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	for !e.done {
		chunk, err := stream.Next(e.chunks)
		switch {
		case err == io.EOF:
			e.done = true
			if e.identity {
				return 0, io.EOF
			}
			if err := e.writer().Close(); err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		case e.identity:
			values[0] = chunk
			return 1, nil
		default:
			zw := e.writer()
			if _, err := zw.Write(chunk); err != nil {
				return 0, err
			}
			if err := zw.Flush(); err != nil {
				return 0, err
			}
		}

		if e.buf.Len() > 0 {
			values[0] = bytes.Clone(e.buf.Bytes())
			e.buf.Reset()
			return 1, nil
		}
	}
	return 0, io.EOF
}

func (e *encoder) writer() *gzip.Writer {
	if e.zw == nil {
		// The level was validated when the handler was constructed.
		e.zw, _ = gzip.NewWriterLevel(&e.buf, e.level)
	}
	return e.zw
}

func (e *encoder) Close() error {
	return e.chunks.Close()
}
