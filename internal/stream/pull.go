package stream

import (
	"io"
	"iter"
)

// Pull converts a push-style sequence into a pull-based ReadCloser.
//
// Each call to Read resumes seq until it yields the next value, so values are
// produced one at a time and only when asked for. Closing the reader stops
// the sequence; seq must not be used after it was passed to Pull.
func Pull[T any](seq iter.Seq2[T, error]) ReadCloser[T] {
	next, stop := iter.Pull2(seq)
	return &pullReader[T]{next: next, stop: stop}
}

type pullReader[T any] struct {
	next func() (T, error, bool)
	stop func()
	err  error
}

func (r *pullReader[T]) Read(values []T) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(values) == 0 {
		return 0, nil
	}
	v, err, ok := r.next()
	switch {
	case !ok:
		r.err = io.EOF
		return 0, io.EOF
	case err != nil:
		r.err = err
		r.stop()
		return 0, err
	}
	values[0] = v
	return 1, nil
}

func (r *pullReader[T]) Close() error {
	if r.err == nil {
		r.err = io.ErrClosedPipe
	}
	r.stop()
	return nil
}
