// Command udpchat-server runs the chat server.
//
//	udpchat-server -port 1337 -client-max 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/udpchat/chatproto"
	"github.com/cyberinferno/udpchat/chatserver"
	"github.com/cyberinferno/udpchat/logger"
	"github.com/cyberinferno/udpchat/presence"
	"github.com/cyberinferno/udpchat/udpserver"
)

func main() {
	config, err := parseConfiguration(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(config); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(config Configuration) (logger.Logger, error) {
	level, err := logger.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}

	if config.LogDir == "" {
		return logger.NewConsoleLogger(os.Stderr, BinaryName, level), nil
	}

	return logger.NewZerologFileLogger(nil, BinaryName, config.LogDir, level, logger.WithRetention(config.LogRetention))
}

func newPresenceStore(ctx context.Context, config Configuration) (presence.Store, func() error, error) {
	// Entries outlive two sweeps so a healthy server never lets them lapse.
	ttl := 2*config.SweepInterval + config.HeartbeatTimeout

	if config.RedisAddr == "" {
		return presence.NewMemoryStore(ttl, time.Minute), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s unreachable: %w", config.RedisAddr, err)
	}

	return presence.NewRedisStore(client, config.RedisKey, ttl), client.Close, nil
}

func run(config Configuration) error {
	log, err := newLogger(config)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("starting", logger.Field{Key: "version", Value: Version}, logger.Field{Key: "config", Value: fmt.Sprintf("%+v", config)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newPresenceStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeStore()

	mirror, err := presence.NewMirror(store, log)
	if err != nil {
		return err
	}

	transport := &udpserver.UDPServer{
		Logger: log,
		Name:   "chat",
		Addr:   config.Addr(),
		// One byte over the limit so oversized payloads are seen as such.
		ReadBufferSize: chatproto.MaxDatagramSize + 1,
	}

	server, err := chatserver.New(transport,
		chatserver.WithClientMax(config.ClientMax),
		chatserver.WithHeartbeatTimeout(config.HeartbeatTimeout),
		chatserver.WithSweepInterval(config.SweepInterval),
		chatserver.WithLogger(log),
	)
	if err != nil {
		return err
	}

	server.Subscribe(&console{out: os.Stdout})
	server.Subscribe(mirror)
	transport.Handler = func(d udpserver.Datagram) {
		server.Handle(d.From, d.Data)
	}

	if err := transport.Start(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "UDP chat server listening on %s, press Ctrl-C to stop...\n", transport.LocalAddr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		transport.Stop()

		clearCtx, cancel := context.WithTimeout(context.Background(), presence.DefaultTimeout)
		defer cancel()
		if err := mirror.Close(clearCtx); err != nil {
			log.Warn("failed to clear presence", logger.Field{Key: "error", Value: err})
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("stopped")
	return nil
}
