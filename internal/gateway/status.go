package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is a parsed status line, for example "200 OK".
type Status struct {
	Code   int
	Reason string
}

var (
	statusInternalServerError = Status{Code: 500, Reason: "Internal Server Error"}
	statusBadRequest          = Status{Code: 400, Reason: "Bad Request"}
)

// ParseStatus parses a status line of the form "<code> <reason>" where code is
// made of exactly three digits. The reason phrase may be empty but the space
// separating it from the code may not.
func ParseStatus(line string) (Status, error) {
	if line == "" {
		return Status{}, fmt.Errorf("%w: empty", ErrInvalidStatusLine)
	}
	if strings.ContainsAny(line, "\r\n") {
		return Status{}, fmt.Errorf("%w: %q contains a line break", ErrInvalidStatusLine, line)
	}
	code, reason, ok := strings.Cut(line, " ")
	if !ok {
		return Status{}, fmt.Errorf("%w: %q is missing the reason phrase", ErrInvalidStatusLine, line)
	}
	if len(code) != 3 || code[0] < '1' || code[0] > '9' || !isDigit(code[1]) || !isDigit(code[2]) {
		return Status{}, fmt.Errorf("%w: %q is not a three digit status code", ErrInvalidStatusLine, code)
	}
	n, _ := strconv.Atoi(code)
	return Status{Code: n, Reason: reason}, nil
}

func (s Status) String() string {
	return strconv.Itoa(s.Code) + " " + s.Reason
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
