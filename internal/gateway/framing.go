package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// FramingMode is the wire-level strategy delimiting the end of a response
// body.
type FramingMode int

const (
	// CloseDelimited bodies end when the connection is closed.
	CloseDelimited FramingMode = iota
	// DeclaredLength bodies are exactly as long as their Content-Length.
	DeclaredLength
	// Chunked bodies use the HTTP/1.1 chunked transfer coding.
	Chunked
)

func (m FramingMode) String() string {
	switch m {
	case CloseDelimited:
		return "close-delimited"
	case DeclaredLength:
		return "declared-length"
	case Chunked:
		return "chunked"
	default:
		return fmt.Sprintf("FramingMode(%d)", int(m))
	}
}

// Framing is the framing decision made for a response. Length is only
// meaningful for the DeclaredLength mode.
type Framing struct {
	Mode   FramingMode
	Length int64
}

func (f Framing) String() string {
	if f.Mode == DeclaredLength {
		return fmt.Sprintf("%s(%d)", f.Mode, f.Length)
	}
	return f.Mode.String()
}

// DecideFraming chooses the framing of a response from its header list.
//
// Content-Length is the only header inspected: when present the body has a
// declared length, otherwise the undeclared mode applies (CloseDelimited or
// Chunked). Repeated Content-Length fields must carry the same value.
func DecideFraming(headers Headers, undeclared FramingMode) (Framing, error) {
	declared := false
	length := int64(0)

	for _, value := range headers.Values("Content-Length") {
		n, err := parseContentLength(value)
		if err != nil {
			return Framing{}, err
		}
		if declared && n != length {
			return Framing{}, fmt.Errorf("%w: conflicting values %d and %d", ErrInvalidContentLength, length, n)
		}
		declared, length = true, n
	}

	if declared {
		return Framing{Mode: DeclaredLength, Length: length}, nil
	}
	if undeclared != Chunked {
		undeclared = CloseDelimited
	}
	return Framing{Mode: undeclared}, nil
}

func parseContentLength(value string) (int64, error) {
	s := strings.Trim(value, " \t")
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidContentLength)
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidContentLength, value)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidContentLength, value, err)
	}
	return n, nil
}
