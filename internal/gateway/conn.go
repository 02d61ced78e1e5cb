package gateway

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/stealthrocket/httpgate/internal/buffer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	instrumentationName = "github.com/stealthrocket/httpgate/internal/gateway"

	DefaultMaxHeaderBytes = 1 << 20
)

var statusRequestHeaderTooLarge = Status{Code: 431, Reason: "Request Header Fields Too Large"}

// Gateway serves the requests received on connections with a Dispatcher.
type Gateway struct {
	Dispatcher *Dispatcher

	// Framing of bodies without a declared length, CloseDelimited or Chunked.
	Undeclared FramingMode

	// Limit on the size of the request line and headers. Zero means
	// DefaultMaxHeaderBytes.
	MaxHeaderBytes int

	// Deadlines applied to connections which support them. Zero means no
	// deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *zap.Logger
	Tracer trace.Tracer

	buffers buffer.Pool
}

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// ServeConn reads requests from conn and writes their responses back until
// the connection cannot be reused, the peer closes it, or ctx is canceled.
//
// The returned error is nil when the connection ended normally; otherwise it
// describes the fault which made the connection unusable. The caller owns
// conn and is responsible for closing it.
func (g *Gateway) ServeConn(ctx context.Context, conn io.ReadWriter, remoteAddr string) error {
	br := bufio.NewReader(conn)
	bw := g.buffers.Get(conn)
	defer buffer.Release(&bw, &g.buffers)

	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		g.setReadDeadline(conn)

		req, err := ReadRequest(ctx, br, g.maxHeaderBytes())
		if err != nil {
			switch {
			case errors.Is(err, ErrRequestHeaderTooLarge):
				g.reject(bw, statusRequestHeaderTooLarge, remoteAddr, err)
			case errors.Is(err, ErrMalformedRequest):
				g.reject(bw, statusBadRequest, remoteAddr, err)
			default:
				// The peer closed the connection or went idle for too long.
				return nil
			}
			return err
		}
		req.withRemoteAddr(remoteAddr)

		g.setWriteDeadline(conn)
		res, err := g.serve(ctx, req, NewFramer(bw, req, g.Undeclared))
		if err != nil && !res.Fallback {
			return err
		}
		if !res.Reusable || !req.Input().drain() {
			return nil
		}
	}
}

func (g *Gateway) serve(ctx context.Context, req *Request, f *Framer) (Result, error) {
	ctx, span := g.tracer().Start(ctx, "httpgate.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method()),
			attribute.String("url.path", req.Path()),
			attribute.String("network.protocol.version", req.Protocol()),
			attribute.String("httpgate.request_id", req.ID()),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := g.Dispatcher.Serve(ctx, req.WithContext(ctx), f)

	span.SetAttributes(
		attribute.Int("http.response.status_code", res.Status.Code),
		attribute.Int("httpgate.handler", res.Handler),
		attribute.String("httpgate.framing", res.Framing.String()),
		attribute.Int64("httpgate.body_bytes", res.Bytes),
		attribute.Bool("httpgate.fallback", res.Fallback),
	)

	fields := []zap.Field{
		zap.String("request_id", req.ID()),
		zap.String("method", req.Method()),
		zap.String("path", req.Path()),
		zap.Int("handler", res.Handler),
		zap.Int("status", res.Status.Code),
		zap.Stringer("framing", res.Framing),
		zap.Int64("bytes", res.Bytes),
		zap.Bool("reusable", res.Reusable),
		zap.Duration("duration", time.Since(start)),
	}

	if err != nil {
		kind := Kind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		g.logger().Error("request failed",
			append(fields, zap.String("fault", kind), zap.Bool("fallback", res.Fallback), zap.Error(err))...)
	} else {
		g.logger().Debug("request served", fields...)
	}
	return res, err
}

func (g *Gateway) reject(bw *bufio.Writer, status Status, remoteAddr string, cause error) {
	err := NewFramer(bw, nil, CloseDelimited).WriteError(status)
	g.logger().Warn("request rejected",
		zap.String("remote_addr", remoteAddr),
		zap.Int("status", status.Code),
		zap.String("fault", Kind(cause)),
		zap.Error(errors.Join(cause, err)),
	)
}

func (g *Gateway) setReadDeadline(conn io.ReadWriter) {
	if d, ok := conn.(deadliner); ok && g.ReadTimeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(g.ReadTimeout))
	}
}

func (g *Gateway) setWriteDeadline(conn io.ReadWriter) {
	if d, ok := conn.(deadliner); ok && g.WriteTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(g.WriteTimeout))
	}
}

func (g *Gateway) maxHeaderBytes() int {
	if g.MaxHeaderBytes > 0 {
		return g.MaxHeaderBytes
	}
	return DefaultMaxHeaderBytes
}

func (g *Gateway) logger() *zap.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.NewNop()
}

func (g *Gateway) tracer() trace.Tracer {
	if g.Tracer != nil {
		return g.Tracer
	}
	return otel.Tracer(instrumentationName)
}
