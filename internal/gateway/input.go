package gateway

import (
	"bufio"
	"io"

	"github.com/stealthrocket/httpgate/internal/stream"
)

// maxDrainBytes is the amount of unread request body the gateway is willing
// to discard in order to reuse a connection.
const maxDrainBytes = 256 << 10

// Input is the request body stream handed to handlers.
type Input struct {
	r    *bufio.Reader
	size int64
}

func newInput(r io.Reader, size int64) *Input {
	return &Input{r: bufio.NewReader(r), size: size}
}

// Size returns the declared length of the request body, or -1 when the
// length is not known in advance (chunked request bodies).
func (in *Input) Size() int64 { return in.size }

func (in *Input) Read(b []byte) (int, error) { return in.r.Read(b) }

// ReadLine reads up to and including the next '\n'. The last line of the body
// may not be terminated by a line feed, it is returned along with io.EOF.
func (in *Input) ReadLine() ([]byte, error) {
	return in.r.ReadBytes('\n')
}

// ReadAll reads the remainder of the body.
func (in *Input) ReadAll() ([]byte, error) {
	return io.ReadAll(in.r)
}

// Lines returns a stream of the remaining lines of the body.
func (in *Input) Lines() stream.Reader[[]byte] {
	return lineReader{in}
}

type lineReader struct{ in *Input }

func (r lineReader) Read(lines [][]byte) (n int, err error) {
	for n < len(lines) {
		line, err := r.in.ReadLine()
		if len(line) > 0 {
			lines[n] = line
			n++
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// drain discards the unread part of the body so the next request can be read
// from the connection. It reports false if the body was too large to be
// discarded or could not be read to the end.
func (in *Input) drain() bool {
	n, err := io.Copy(io.Discard, io.LimitReader(in.r, maxDrainBytes+1))
	return err == nil && n <= maxDrainBytes
}
