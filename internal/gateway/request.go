package gateway

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httputil"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"
)

// Keys of the request context. Request headers are exposed under HTTP_<NAME>
// where NAME is the upper-cased header name with dashes replaced by
// underscores, except Content-Type and Content-Length which have keys of
// their own.
const (
	RequestMethod  = "REQUEST_METHOD"
	PathInfo       = "PATH_INFO"
	QueryString    = "QUERY_STRING"
	RequestURI     = "REQUEST_URI"
	ServerProtocol = "SERVER_PROTOCOL"
	RemoteAddr     = "REMOTE_ADDR"
	ServerName     = "SERVER_NAME"
	ContentType    = "CONTENT_TYPE"
	ContentLength  = "CONTENT_LENGTH"
	InputKey       = "httpgate.input"
	RequestIDKey   = "httpgate.request_id"
)

// Request is the read-only context a handler is invoked with. It maps string
// keys to values describing the request and carries the request body.
type Request struct {
	ctx     context.Context
	environ map[string]any
	header  Headers
	input   *Input
}

// NewRequest constructs a request from its parts. The body may be nil for
// requests without a body.
func NewRequest(ctx context.Context, method, target, protocol string, header Headers, body io.Reader) *Request {
	size := int64(-1)
	if body == nil {
		body, size = bytes.NewReader(nil), 0
	} else if n, ok := header.Get("Content-Length"); ok {
		if v, err := parseContentLength(n); err == nil {
			size = v
		}
	}
	return newRequest(ctx, method, target, protocol, header, newInput(body, size))
}

func newRequest(ctx context.Context, method, target, protocol string, header Headers, input *Input) *Request {
	path, query, _ := strings.Cut(target, "?")

	environ := map[string]any{
		RequestMethod:  method,
		PathInfo:       path,
		QueryString:    query,
		RequestURI:     target,
		ServerProtocol: protocol,
		InputKey:       input,
		RequestIDKey:   uuid.NewString(),
	}

	for _, h := range header {
		key := environKey(h.Name)
		if v, ok := environ[key].(string); ok {
			environ[key] = v + ", " + h.Value
		} else {
			environ[key] = h.Value
		}
	}
	if host, ok := header.Get("Host"); ok {
		environ[ServerName] = host
	}

	return &Request{
		ctx:     ctx,
		environ: environ,
		header:  header,
		input:   input,
	}
}

func environKey(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	switch key {
	case ContentType, ContentLength:
		return key
	}
	return "HTTP_" + key
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

func (r *Request) withRemoteAddr(addr string) {
	if addr != "" {
		r.environ[RemoteAddr] = addr
	}
}

// Context returns the context of the request cycle. It is canceled when the
// client goes away or the server shuts down.
func (r *Request) Context() context.Context { return r.ctx }

// Get returns the value associated with key.
func (r *Request) Get(key string) (any, bool) {
	v, ok := r.environ[key]
	return v, ok
}

// Lookup returns the value associated with key if it is a string.
func (r *Request) Lookup(key string) string {
	s, _ := r.environ[key].(string)
	return s
}

// Keys returns the sorted list of keys present in the request context.
func (r *Request) Keys() []string {
	keys := make([]string, 0, len(r.environ))
	for k := range r.environ {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Request) Method() string   { return r.Lookup(RequestMethod) }
func (r *Request) Path() string     { return r.Lookup(PathInfo) }
func (r *Request) Protocol() string { return r.Lookup(ServerProtocol) }
func (r *Request) ID() string       { return r.Lookup(RequestIDKey) }
func (r *Request) Input() *Input    { return r.input }

// Header returns a copy of the request header list, in wire order.
func (r *Request) Header() Headers { return r.header.Clone() }

// KeepAlive reports whether the client is willing to send another request on
// the connection once this one is served.
func (r *Request) KeepAlive() bool {
	if r.Protocol() != "HTTP/1.1" {
		return false
	}
	for _, v := range r.header.Values("Connection") {
		if httpguts.HeaderValuesContainsToken([]string{v}, "close") {
			return false
		}
	}
	return true
}

// ReadRequest reads the next request from br. Errors occurring before the
// first byte of a request are returned unchanged (io.EOF when the connection
// was closed), other errors wrap ErrMalformedRequest or are
// ErrRequestHeaderTooLarge.
//
// The request line and header block may not exceed maxHeaderBytes.
func ReadRequest(ctx context.Context, br *bufio.Reader, maxHeaderBytes int) (*Request, error) {
	budget := maxHeaderBytes

	var line []byte
	var err error
	// Tolerate empty lines preceding the request line.
	for len(line) == 0 {
		line, err = readLine(br, &budget)
		if err != nil {
			if budget == maxHeaderBytes {
				// Nothing was received, the connection was closed or timed out
				// while idle.
				return nil, err
			}
			return nil, requestError(err)
		}
	}

	method, target, protocol := splitRequestLine(line)
	if !httpguts.ValidHeaderFieldName(method) || target == "" {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, line)
	}
	switch protocol {
	case "HTTP/1.0", "HTTP/1.1":
	default:
		return nil, fmt.Errorf("%w: unsupported protocol %q", ErrMalformedRequest, protocol)
	}

	var header Headers
	for {
		line, err = readLine(br, &budget)
		if err != nil {
			return nil, requestError(err)
		}
		if len(line) == 0 {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			// Obsolete line folding continues the previous field value.
			if len(header) == 0 {
				return nil, fmt.Errorf("%w: continuation line before the first header", ErrMalformedRequest)
			}
			last := &header[len(header)-1]
			last.Value += " " + string(bytes.Trim(line, " \t"))
			continue
		}
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok || !httpguts.ValidHeaderFieldName(string(name)) {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRequest, line)
		}
		header = append(header, Header{
			Name:  string(name),
			Value: string(bytes.Trim(value, " \t")),
		})
	}

	input, err := requestBody(br, header)
	if err != nil {
		return nil, err
	}
	return newRequest(ctx, method, target, protocol, header, input), nil
}

func requestBody(br *bufio.Reader, header Headers) (*Input, error) {
	if te := header.Values("Transfer-Encoding"); len(te) > 0 {
		if !httpguts.HeaderValuesContainsToken(te, "chunked") {
			return nil, fmt.Errorf("%w: unsupported transfer encoding %q", ErrMalformedRequest, te)
		}
		return newInput(&chunkedBody{r: httputil.NewChunkedReader(br), br: br}, -1), nil
	}
	length := int64(0)
	if values := header.Values("Content-Length"); len(values) > 0 {
		framing, err := DecideFraming(header, CloseDelimited)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}
		length = framing.Length
	}
	return newInput(io.LimitReader(br, length), length), nil
}

// chunkedBody consumes the trailer section that follows the last chunk of a
// chunked request body, so the connection is positioned at the next request.
type chunkedBody struct {
	r    io.Reader
	br   *bufio.Reader
	done bool
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	n, err := b.r.Read(p)
	if err == io.EOF {
		b.done = true
		budget := maxDrainBytes
		for {
			line, lineErr := readLine(b.br, &budget)
			if lineErr != nil {
				return n, requestError(lineErr)
			}
			if len(line) == 0 {
				break
			}
		}
	}
	return n, err
}

// readLine reads a line terminated by LF or CRLF and returns it without the
// terminator. The number of bytes read is deducted from the budget.
func readLine(br *bufio.Reader, budget *int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if *budget -= len(chunk); *budget < 0 {
			return nil, ErrRequestHeaderTooLarge
		}
		line = append(line, chunk...)
		switch err {
		case nil:
			line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
			return line, nil
		case bufio.ErrBufferFull:
			continue
		default:
			return nil, err
		}
	}
}

func splitRequestLine(line []byte) (method, target, protocol string) {
	// Request-Line = Method SP Request-URI SP HTTP-Version
	m, rest, ok := bytes.Cut(line, []byte(" "))
	if !ok {
		return string(line), "", ""
	}
	t, p, _ := bytes.Cut(rest, []byte(" "))
	return string(m), string(t), string(p)
}

func requestError(err error) error {
	switch err {
	case ErrRequestHeaderTooLarge:
		return err
	case io.EOF:
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
}
