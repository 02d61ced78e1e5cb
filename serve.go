package main

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/stealthrocket/httpgate/internal/httpgate"
)

const serveUsage = `
Usage:	httpgate serve [options]

   Accept connections and serve each request with one of the applications
   declared in the configuration file, or the demo applications when none are
   declared. The server runs until it receives SIGINT or SIGTERM.

Options:
   -c, --config path     Path to the httpgate configuration file (overrides HTTPGATECONFIG)
       --chunked         Use the chunked transfer coding for bodies without a Content-Length
   -h, --help            Show this usage information
   -L, --listen addr     Address to accept connections on (default from configuration)
       --policy name     Handler selection policy, one of: random, round-robin, first
       --reuse-port      Bind the listening socket with SO_REUSEPORT
       --trace           Print the spans of request cycles to stdout
`

func (c *command) serve(ctx context.Context, args []string) (err error) {
	var (
		listen    string
		selection policy
		chunked   bool
		reusePort bool
		trace     bool
	)

	flagSet := c.newFlagSet("httpgate serve", serveUsage)
	stringVar(flagSet, &listen, "L", "listen")
	customVar(flagSet, &selection, "policy")
	boolVar(flagSet, &chunked, "chunked")
	boolVar(flagSet, &reusePort, "reuse-port")
	boolVar(flagSet, &trace, "trace")

	args, err = c.parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return usageError("httpgate serve: unexpected arguments: %q", args)
	}

	config, err := httpgate.LoadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		config.Listen = listen
	}
	if selection != "" {
		config.Policy = string(selection)
	}
	if chunked {
		config.UndeclaredLength = "chunked"
	}
	config.ReusePort = config.ReusePort || reusePort
	config.Tracing.Enabled = config.Tracing.Enabled || trace

	logger, err := httpgate.NewLogger(config.Log, c.stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tracing, err := httpgate.NewTracing(config.Tracing.Enabled, currentVersion(), c.stdout)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, tracing.Shutdown(ctx))
	}()

	g, err := config.NewGateway(logger, tracing)
	if err != nil {
		return err
	}

	l, err := httpgate.Listen(ctx, config.Listen, config.ReusePort)
	if err != nil {
		return err
	}

	logger.Info("listening",
		zap.Stringer("addr", l.Addr()),
		zap.String("policy", config.Policy),
		zap.String("undeclaredLength", config.UndeclaredLength),
		zap.Int("handlers", g.Dispatcher.Len()),
	)

	server := &httpgate.Server{
		Gateway: g,
		Limiter: config.NewLimiter(),
		Logger:  logger,
	}
	if err := server.Serve(ctx, l); err != nil {
		return err
	}
	logger.Info("shutdown")
	return nil
}
