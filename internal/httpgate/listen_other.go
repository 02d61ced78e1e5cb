//go:build !unix

package httpgate

import (
	"errors"
	"syscall"
)

func setReusePort(network, address string, c syscall.RawConn) error {
	return errors.New("SO_REUSEPORT is not supported on this platform")
}
