package httpgate

import (
	"context"
	"errors"
	"net"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/stealthrocket/httpgate/internal/gateway"
)

// Server accepts connections and serves them with a gateway, one goroutine
// per connection.
type Server struct {
	Gateway *gateway.Gateway
	// Optional limit on the rate of accepted connections.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// Serve accepts connections on l until ctx is canceled or accepting fails.
// Connections still open when Serve returns are closed. The listener is
// always closed when Serve returns.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	group, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)

	group.Go(func() error {
		<-ctx.Done()
		return ignoreClosed(l.Close())
	})

	group.Go(func() error {
		defer cancel()
		for {
			if s.Limiter != nil {
				if err := s.Limiter.Wait(ctx); err != nil {
					return nil
				}
			}
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			group.Go(func() error {
				s.serveConn(ctx, conn)
				return nil
			})
		}
	})

	return group.Wait()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	// Unblock reads and writes when the server shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	addr := conn.RemoteAddr().String()
	err := s.Gateway.ServeConn(ctx, conn, addr)
	err = multierr.Append(err, ignoreClosed(conn.Close()))

	if err != nil && ctx.Err() == nil {
		s.logger().Warn("connection closed on error",
			zap.String("remote_addr", addr),
			zap.String("fault", gateway.Kind(err)),
			zap.Error(err))
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Listen opens a TCP listener on addr. With reusePort, the socket is bound
// with SO_REUSEPORT so multiple servers can share the address.
func Listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = setReusePort
	}
	return lc.Listen(ctx, "tcp", addr)
}
