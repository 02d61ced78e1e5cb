// Package buffer pools the buffered writers placed between the gateway and
// its transports.
package buffer

import (
	"bufio"
	"io"
	"sync"
)

const DefaultSize = 4096

type Pool struct {
	Size int
	pool sync.Pool
}

// Get returns a buffered writer targeting w. The writer must be returned to
// the pool with Put once the caller is done with it.
func (p *Pool) Get(w io.Writer) *bufio.Writer {
	if b, _ := p.pool.Get().(*bufio.Writer); b != nil {
		b.Reset(w)
		return b
	}
	return bufio.NewWriterSize(w, p.size())
}

func (p *Pool) Put(b *bufio.Writer) {
	if b != nil {
		// Drop the reference to the transport so a pooled writer does not keep
		// a closed connection alive.
		b.Reset(nil)
		p.pool.Put(b)
	}
}

func (p *Pool) size() int {
	if p.Size > 0 {
		return p.Size
	}
	return DefaultSize
}

// Release puts the writer pointed to by buf back into pool and clears the
// pointer.
func Release(buf **bufio.Writer, pool *Pool) {
	if b := *buf; b != nil {
		*buf = nil
		pool.Put(b)
	}
}
