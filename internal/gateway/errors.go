package gateway

import (
	"context"
	"errors"
)

var (
	ErrInvalidStatusLine      = errors.New("invalid status line")
	ErrInvalidHeaderValue     = errors.New("invalid header value")
	ErrResponseAlreadyStarted = errors.New("response already started")
	ErrResponseNotStarted     = errors.New("response not started")
	ErrInvalidChunkType       = errors.New("invalid chunk type")
	ErrInvalidContentLength   = errors.New("invalid content length")
	ErrOverLengthBody         = errors.New("body longer than the declared content length")
	ErrTruncatedBody          = errors.New("body shorter than the declared content length")
	ErrHandlerRaised          = errors.New("handler failed")
	ErrMalformedRequest       = errors.New("malformed request")
	ErrRequestHeaderTooLarge  = errors.New("request header too large")
	ErrNoHandlers             = errors.New("no handlers registered")
)

var kinds = [...]struct {
	err  error
	name string
}{
	{ErrInvalidStatusLine, "InvalidStatusLine"},
	{ErrInvalidHeaderValue, "InvalidHeaderValue"},
	{ErrResponseAlreadyStarted, "ResponseAlreadyStarted"},
	{ErrInvalidChunkType, "InvalidChunkType"},
	{ErrInvalidContentLength, "InvalidContentLength"},
	{ErrOverLengthBody, "OverLengthBody"},
	{ErrTruncatedBody, "TruncatedBody"},
	{ErrRequestHeaderTooLarge, "RequestHeaderTooLarge"},
	{ErrMalformedRequest, "MalformedRequest"},
	// Checked last: handler failures wrap the error that caused them, which
	// may itself be one of the kinds above.
	{ErrResponseNotStarted, "HandlerRaised"},
	{ErrHandlerRaised, "HandlerRaised"},
	{context.Canceled, "Canceled"},
	{context.DeadlineExceeded, "DeadlineExceeded"},
}

// Kind returns the name of the fault kind that err belongs to, suitable for
// logs and span attributes. The empty string is returned for nil errors, and
// "Transport" for errors which are not gateway faults (for example I/O errors
// reported by the connection).
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Transport"
}
