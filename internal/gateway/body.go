package gateway

import (
	"fmt"
	"iter"

	"github.com/stealthrocket/httpgate/internal/stream"
)

// Body is the value returned by handlers to describe the body of their
// response. It is one of Blob, Chunks or Lazy; the set of variants is closed.
type Body interface {
	body()
}

// Blob is a body made of a single byte string. An empty blob is an empty
// body.
type Blob []byte

// Chunks is a body made of a finite sequence of byte strings, written in
// order.
type Chunks [][]byte

// Lazy is a body produced on demand. The gateway pulls one chunk at a time
// from Reader and writes it to the transport before pulling the next one, the
// sequence is never buffered. If Reader implements io.Closer, it is closed
// when the response completes or is aborted.
type Lazy struct {
	Reader stream.Reader[[]byte]
}

func (Blob) body()   {}
func (Chunks) body() {}
func (Lazy) body()   {}

// Generate returns a Lazy body producing the chunks yielded by seq. The
// sequence is resumed each time the gateway needs a chunk and is stopped if
// the response is aborted. An error yielded by seq aborts the response.
func Generate(seq iter.Seq2[[]byte, error]) Lazy {
	return Lazy{Reader: stream.Pull(seq)}
}

// Values returns a Lazy body over dynamically typed values. Byte slices and
// strings are accepted as chunks; any other value aborts the response with
// ErrInvalidChunkType when it is reached.
func Values(r stream.Reader[any]) Lazy {
	return Lazy{Reader: stream.ConvertReader(r, chunkOf)}
}

func chunkOf(v any) ([]byte, error) {
	switch c := v.(type) {
	case []byte:
		return c, nil
	case string:
		return []byte(c), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidChunkType, v)
	}
}

// Normalize converts a body into a uniform stream of chunks. The returned
// reader must be closed once the caller is done with it.
func Normalize(body Body) (stream.ReadCloser[[]byte], error) {
	switch b := body.(type) {
	case Blob:
		return stream.NopCloser(stream.NewReader([]byte(b))), nil
	case Chunks:
		return stream.NopCloser(stream.NewReader([][]byte(b)...)), nil
	case Lazy:
		if b.Reader == nil {
			return nil, fmt.Errorf("%w: lazy body without a reader", ErrInvalidChunkType)
		}
		if rc, ok := b.Reader.(stream.ReadCloser[[]byte]); ok {
			return rc, nil
		}
		return stream.NopCloser(b.Reader), nil
	case nil:
		return nil, fmt.Errorf("%w: handler returned no body", ErrInvalidChunkType)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidChunkType, body)
	}
}
