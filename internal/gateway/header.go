package gateway

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Header is a single header field. Values are written to the wire verbatim.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered list of header fields. Repeated names are legal and
// the order of the list is the order of the fields on the wire.
type Headers []Header

// Validate checks that every name is a valid HTTP token and that no name or
// value contains a line break.
func (h Headers) Validate() error {
	for i, f := range h {
		if strings.ContainsAny(f.Name, "\r\n") || !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("%w: header %d has an invalid name %q", ErrInvalidHeaderValue, i, f.Name)
		}
		if strings.ContainsAny(f.Value, "\r\n") {
			return fmt.Errorf("%w: header %q has a value containing a line break", ErrInvalidHeaderValue, f.Name)
		}
	}
	return nil
}

// Get returns the value of the first field matching name, compared case
// insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns the values of all the fields matching name, in order.
func (h Headers) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Without returns a copy of h where the fields matching name are removed.
func (h Headers) Without(name string) Headers {
	headers := make(Headers, 0, len(h))
	for _, f := range h {
		if !strings.EqualFold(f.Name, name) {
			headers = append(headers, f)
		}
	}
	return headers
}

func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(make(Headers, 0, len(h)), h...)
}
