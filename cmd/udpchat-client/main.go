// Command udpchat-client is a terminal chat client.
//
//	udpchat-client -host 127.0.0.1 -port 1337 -user alice
package main

import (
	"errors"
	"flag"
	"os"

	"github.com/cyberinferno/udpchat/chatclient"
	"github.com/cyberinferno/udpchat/logger"
	"github.com/cyberinferno/udpchat/udpclient"
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
	if config.LogDir == "" {
		return logger.NewNopLogger(), nil
	}

	level, err := logger.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}

	return logger.NewZerologFileLogger(nil, BinaryName, config.LogDir, level)
}

func run(config Configuration) error {
	log, err := newLogger(config)
	if err != nil {
		return err
	}
	defer log.Close()

	transport := udpclient.New(udpclient.DefaultConfig(config.Addr()))
	client := chatclient.New(transport, chatclient.Config{
		Host:   config.Host,
		Logger: log,
	})

	transport.OnDataReceived(func(event udpclient.DataReceivedEvent) {
		client.HandleDatagram(event.Data)
	})
	transport.OnError(func(event udpclient.ErrorEvent) {
		log.Warn("transport error", logger.Field{Key: "error", Value: event.Error})
	})

	if err := transport.Connect(); err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			log.Warn("disconnect failed", logger.Field{Key: "error", Value: err})
		}
	}()

	ui, err := newConsole(client, config)
	if err != nil {
		return err
	}
	defer ui.Close()

	unsubscribe := client.Subscribe(ui)
	defer unsubscribe()

	return ui.Run(config.User)
}
