package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync/atomic"

	"github.com/stealthrocket/httpgate/internal/stream"
)

// Handler is the calling convention of applications served by the gateway.
// A handler commits its status and headers by calling start exactly once and
// returns the body of the response.
//
// The call to start may be deferred until the first chunk of a Lazy body is
// produced. An error returned by the handler, or a panic, fails the request
// cycle with ErrHandlerRaised.
type Handler func(req *Request, start StartFunc) (Body, error)

// Policy selects which of n registered handlers serves a request. Policies
// are invoked concurrently and must not rely on locks.
type Policy interface {
	Select(req *Request, n int) int
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(req *Request, n int) int

func (f PolicyFunc) Select(req *Request, n int) int { return f(req, n) }

// Random selects handlers uniformly at random for every request.
func Random() Policy {
	return PolicyFunc(func(_ *Request, n int) int { return rand.IntN(n) })
}

// Fixed always selects the handler at index i.
func Fixed(i int) Policy {
	return PolicyFunc(func(*Request, int) int { return i })
}

// RoundRobin cycles through the handlers in registration order.
func RoundRobin() Policy {
	next := new(atomic.Uint64)
	return PolicyFunc(func(_ *Request, n int) int {
		return int((next.Add(1) - 1) % uint64(n))
	})
}

// Dispatcher selects a handler for each request and drives the request cycle:
// invoking the handler, normalizing its body and framing the response.
type Dispatcher struct {
	policy   Policy
	handlers []Handler
}

// NewDispatcher constructs a Dispatcher over a copy of handlers. The list is
// never modified afterwards. A nil policy selects handlers at random.
func NewDispatcher(policy Policy, handlers ...Handler) (*Dispatcher, error) {
	if len(handlers) == 0 {
		return nil, ErrNoHandlers
	}
	if policy == nil {
		policy = Random()
	}
	return &Dispatcher{
		policy:   policy,
		handlers: append([]Handler(nil), handlers...),
	}, nil
}

// Len returns the number of registered handlers.
func (d *Dispatcher) Len() int { return len(d.handlers) }

// Result summarizes a request cycle.
type Result struct {
	Handler  int
	Status   Status
	Framing  Framing
	Bytes    int64
	Fallback bool
	Reusable bool
}

// Serve runs one request cycle, writing the response to req through f.
//
// Errors detected before anything was written to the transport (invalid
// preamble, handler failure, invalid body) are answered with a fallback
// "500 Internal Server Error" response and returned. Errors occurring after
// bytes were written stop the response where it is; the result is then not
// reusable. In both cases the returned error describes the fault.
func (d *Dispatcher) Serve(ctx context.Context, req *Request, f *Framer) (res Result, err error) {
	res.Handler = d.policy.Select(req, len(d.handlers))
	if res.Handler < 0 || res.Handler >= len(d.handlers) {
		res.Handler = 0
	}

	defer func() {
		res.Bytes = f.Written()
		res.Reusable = (err == nil || res.Fallback) && f.Reusable()
	}()

	r := &responder{undeclared: f.Undeclared()}
	body, err := invoke(d.handlers[res.Handler], req, r.start)
	if err != nil {
		return d.fallback(f, &res, err)
	}

	chunks, err := Normalize(body)
	if err != nil {
		return d.fallback(f, &res, err)
	}
	defer chunks.Close()

	for !f.head || !f.Started() {
		if ctx.Err() != nil {
			// The client is gone or the server is shutting down, the response
			// is abandoned without attempting to complete it.
			return res, context.Cause(ctx)
		}

		chunk, err := pull(chunks)
		if err == io.EOF {
			break
		}
		if err != nil {
			if !f.Started() {
				return d.fallback(f, &res, err)
			}
			return res, err
		}

		if !f.Started() {
			if err := d.writePreamble(f, r, &res); err != nil {
				return d.fallback(f, &res, err)
			}
		}
		if err := f.WriteChunk(chunk); err != nil {
			return res, err
		}
	}

	if !f.Started() {
		if err := d.writePreamble(f, r, &res); err != nil {
			return d.fallback(f, &res, err)
		}
	}
	return res, f.Close()
}

func (d *Dispatcher) writePreamble(f *Framer, r *responder, res *Result) error {
	if !r.committed {
		return fmt.Errorf("%w: %w", ErrHandlerRaised, ErrResponseNotStarted)
	}
	err := f.WritePreamble(&r.preamble)
	res.Status, res.Framing = r.preamble.Status, f.Framing()
	return err
}

func (d *Dispatcher) fallback(f *Framer, res *Result, cause error) (Result, error) {
	if f.Started() {
		// Only reachable when writing the preamble itself failed.
		return *res, cause
	}
	res.Fallback = true
	res.Status = statusInternalServerError
	res.Framing = Framing{Mode: DeclaredLength}
	if err := f.WriteError(statusInternalServerError); err != nil {
		return *res, errors.Join(cause, err)
	}
	return *res, cause
}

func invoke(handler Handler, req *Request, start StartFunc) (body Body, err error) {
	defer func() {
		if v := recover(); v != nil {
			body, err = nil, fmt.Errorf("%w: panic: %v", ErrHandlerRaised, v)
		}
	}()
	body, err = handler(req, start)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrHandlerRaised, err)
	}
	return body, err
}

// pull produces the next chunk of the body. Faults of the body producer are
// reported as ErrHandlerRaised unless they already carry a gateway fault kind.
func pull(chunks stream.Reader[[]byte]) (chunk []byte, err error) {
	defer func() {
		if v := recover(); v != nil {
			chunk, err = nil, fmt.Errorf("%w: panic: %v", ErrHandlerRaised, v)
		}
	}()
	chunk, err = stream.Next(chunks)
	switch {
	case err == nil, err == io.EOF:
	case errors.Is(err, ErrInvalidChunkType), errors.Is(err, ErrHandlerRaised):
	default:
		err = fmt.Errorf("%w: %w", ErrHandlerRaised, err)
	}
	return chunk, err
}
