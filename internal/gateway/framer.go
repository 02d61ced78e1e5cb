package gateway

import (
	"bufio"
	"fmt"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

var crlf = []byte("\r\n")

// Framer writes responses to a transport, applying the framing decided for
// each preamble. A Framer serves a single response.
type Framer struct {
	w          *bufio.Writer
	protocol   string
	head       bool
	keepAlive  bool
	undeclared FramingMode

	framing  Framing
	bodiless bool
	// The handler asked for the connection to be closed.
	closing bool
	started bool
	closed  bool
	written int64
}

// NewFramer constructs a Framer writing the response to req on w. The
// undeclared mode is used for bodies without a Content-Length; it falls back
// to CloseDelimited for clients which do not speak HTTP/1.1.
//
// req may be nil when no request could be parsed, the response is then an
// HTTP/1.1 response after which the connection is closed.
func NewFramer(w *bufio.Writer, req *Request, undeclared FramingMode) *Framer {
	f := &Framer{w: w, protocol: "HTTP/1.1", undeclared: undeclared}
	if req != nil {
		f.protocol = req.Protocol()
		f.head = req.Method() == "HEAD"
		f.keepAlive = req.KeepAlive()
	}
	if f.protocol != "HTTP/1.1" {
		f.undeclared = CloseDelimited
	}
	return f
}

// Undeclared returns the framing mode applied to bodies without a declared
// length.
func (f *Framer) Undeclared() FramingMode { return f.undeclared }

// Started reports whether any bytes of the response were written.
func (f *Framer) Started() bool { return f.started }

// Framing returns the framing applied to the body, which may differ from the
// one of the preamble for responses without a body.
func (f *Framer) Framing() Framing { return f.framing }

// Written returns the number of body bytes written so far.
func (f *Framer) Written() int64 { return f.written }

// Reusable reports whether the connection may carry another request once the
// response is complete.
func (f *Framer) Reusable() bool {
	switch {
	case !f.keepAlive || f.closing:
		return false
	case f.framing.Mode == CloseDelimited:
		return false
	case f.bodiless && f.framing.Length > 0:
		// Clients do not read the declared bytes.
		return false
	default:
		return true
	}
}

// bodiless reports whether responses with the status code carry no body as
// far as clients are concerned.
func bodiless(code int) bool {
	return code/100 == 1 || code == 204 || code == 304
}

// WritePreamble writes the status line and headers of p. The handler's
// headers are written in order, followed by the headers required by the
// framing of the body.
func (f *Framer) WritePreamble(p *Preamble) error {
	if f.started {
		return ErrResponseAlreadyStarted
	}
	f.started = true
	f.framing = p.Framing
	f.bodiless = bodiless(p.Status.Code)
	f.closing = httpguts.HeaderValuesContainsToken(p.Headers.Values("Connection"), "close")

	// A chunked coding cannot be announced on a response without a body.
	if f.bodiless && f.framing.Mode == Chunked {
		f.framing.Mode = CloseDelimited
	}

	w := f.w
	w.WriteString(f.protocol)
	w.WriteByte(' ')
	w.WriteString(strconv.Itoa(p.Status.Code))
	w.WriteByte(' ')
	w.WriteString(p.Status.Reason)
	w.Write(crlf)

	for _, h := range p.Headers {
		w.WriteString(h.Name)
		w.WriteString(": ")
		w.WriteString(h.Value)
		w.Write(crlf)
	}

	if f.framing.Mode == Chunked {
		w.WriteString("Transfer-Encoding: chunked\r\n")
	}
	if !f.Reusable() && !f.closing {
		w.WriteString("Connection: close\r\n")
	}
	_, err := w.Write(crlf)
	return err
}

// WriteChunk writes a chunk of the body and flushes it to the transport.
//
// With a declared length, bytes past the declared length are not written and
// ErrOverLengthBody is returned. Zero-length chunks write nothing.
func (f *Framer) WriteChunk(chunk []byte) error {
	if !f.started {
		return ErrResponseNotStarted
	}
	if f.head {
		return nil
	}

	var fault error
	if f.framing.Mode == DeclaredLength {
		if remain := f.framing.Length - f.written; int64(len(chunk)) > remain {
			fault = fmt.Errorf("%w: %d bytes declared, %d bytes produced",
				ErrOverLengthBody, f.framing.Length, f.written+int64(len(chunk)))
			chunk = chunk[:remain]
		}
	}

	if len(chunk) > 0 {
		if f.framing.Mode == Chunked {
			f.w.WriteString(strconv.FormatInt(int64(len(chunk)), 16))
			f.w.Write(crlf)
			f.w.Write(chunk)
			f.w.Write(crlf)
		} else {
			f.w.Write(chunk)
		}
		f.written += int64(len(chunk))
	}

	if err := f.w.Flush(); err != nil {
		return err
	}
	return fault
}

// Close ends the body. ErrTruncatedBody is returned if fewer bytes than the
// declared length were written; the bytes already sent cannot be recalled so
// the connection must not be reused.
func (f *Framer) Close() error {
	if !f.started {
		return ErrResponseNotStarted
	}
	if f.closed {
		return nil
	}
	f.closed = true

	var fault error
	switch {
	case f.head:
	case f.framing.Mode == Chunked:
		f.w.WriteString("0\r\n\r\n")
	case f.framing.Mode == DeclaredLength && f.written < f.framing.Length:
		fault = fmt.Errorf("%w: %d bytes declared, %d bytes produced",
			ErrTruncatedBody, f.framing.Length, f.written)
	}

	if err := f.w.Flush(); err != nil {
		return err
	}
	return fault
}

// WriteError writes a complete response with the given status and an empty
// body. It is used when nothing was written for the current response yet.
func (f *Framer) WriteError(status Status) error {
	p := &Preamble{
		Status:  status,
		Headers: Headers{{Name: "Content-Length", Value: "0"}},
		Framing: Framing{Mode: DeclaredLength},
	}
	if err := f.WritePreamble(p); err != nil {
		return err
	}
	return f.Close()
}
