package gateway

import "fmt"

// Preamble is the status line and header list committed by a handler, along
// with the framing decided for the body that follows.
type Preamble struct {
	Status  Status
	Headers Headers
	Framing Framing
}

// StartFunc is the one-shot capability handlers use to commit the preamble of
// their response. The first successful call commits; any later call fails
// with ErrResponseAlreadyStarted and leaves the committed preamble unchanged.
//
// Committing writes nothing to the transport. The preamble is written when
// the first chunk of the body is available, which lets the gateway replace it
// with an error response if the handler fails before producing any body.
type StartFunc func(status string, headers Headers) error

// responder holds the state behind a StartFunc for one request cycle. It is
// not safe for concurrent use, handlers call the start function from the
// goroutine the gateway invoked them on (or from the body they return, which
// the gateway pulls on that same goroutine).
type responder struct {
	undeclared FramingMode
	committed  bool
	preamble   Preamble
}

func (r *responder) start(status string, headers Headers) error {
	if r.committed {
		return fmt.Errorf("%w: %q was committed first", ErrResponseAlreadyStarted, r.preamble.Status)
	}
	s, err := ParseStatus(status)
	if err != nil {
		return err
	}
	if err := headers.Validate(); err != nil {
		return err
	}
	framing, err := DecideFraming(headers, r.undeclared)
	if err != nil {
		return err
	}
	r.preamble = Preamble{
		Status:  s,
		Headers: headers.Clone(),
		Framing: framing,
	}
	r.committed = true
	return nil
}
