package httpgate_test

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stealthrocket/httpgate/internal/assert"
	"github.com/stealthrocket/httpgate/internal/httpgate"
)

func startServer(t *testing.T, config *httpgate.Config) (string, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	g, err := config.NewGateway(logger, nil)
	assert.OK(t, err)

	l, err := httpgate.Listen(context.Background(), "127.0.0.1:0", config.ReusePort)
	assert.OK(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		s := &httpgate.Server{Gateway: g, Limiter: config.NewLimiter(), Logger: logger}
		done <- s.Serve(ctx, l)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.OK(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return l.Addr().String(), logs
}

func TestServerHTTPClient(t *testing.T) {
	config := httpgate.DefaultConfig()
	config.Policy = "first"
	addr, logs := startServer(t, config)

	res, err := http.Get("http://" + addr + "/")
	assert.OK(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	assert.OK(t, err)
	assert.Equal(t, res.StatusCode, 200)
	assert.Equal(t, res.Header.Get("Foo"), "Bar")
	assert.Equal(t, res.Header.Get("Spam"), "Eggs")
	assert.Equal(t, string(body), "helloworld")

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("request served").Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, logs.FilterMessage("request served").Len(), 1)
}

func TestServerKeepAlive(t *testing.T) {
	config := httpgate.DefaultConfig()
	config.Policy = "round-robin"
	config.UndeclaredLength = "chunked"
	config.ReusePort = true
	addr, _ := startServer(t, config)

	conn, err := net.Dial("tcp", addr)
	assert.OK(t, err)
	defer conn.Close()
	br := bufio.NewReader(conn)

	var bodies []string
	for i := 0; i < 4; i++ {
		_, err := io.WriteString(conn, "GET / HTTP/1.1\r\nHost: test\r\n\r\n")
		assert.OK(t, err)

		res, err := http.ReadResponse(br, nil)
		assert.OK(t, err)
		body, err := io.ReadAll(res.Body)
		assert.OK(t, err)
		res.Body.Close()
		assert.False(t, res.Close)
		bodies = append(bodies, string(body))
	}

	assert.EqualAll(t, bodies, []string{"helloworld", "hello", "Hello World\n", "hello\n"})
}

func TestServerRateLimit(t *testing.T) {
	config := httpgate.DefaultConfig()
	config.Policy = "first"
	config.AcceptRate = 1000
	config.AcceptBurst = 2
	addr, _ := startServer(t, config)

	for i := 0; i < 3; i++ {
		res, err := http.Get("http://" + addr + "/")
		assert.OK(t, err)
		b := new(bytes.Buffer)
		_, err = b.ReadFrom(res.Body)
		res.Body.Close()
		assert.OK(t, err)
		assert.Equal(t, b.String(), "helloworld")
	}
}
