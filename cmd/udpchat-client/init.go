package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cyberinferno/udpchat/chatproto"
	"github.com/cyberinferno/udpchat/logger"
)

// Configuration - client configuration
type Configuration struct {
	// Host - server host; localhost, 127.0.0.1 and ::1 select the loopback grammar
	Host string
	// Port - server port
	Port uint
	// User - username to join with at start, empty asks for it
	User string
	// LogDir - directory of the daily log files, empty disables logging
	LogDir string
	// LogLevel - minimum level written to the log
	LogLevel string
}

var (
	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version
	Version = "1.0.0"
)

// Addr returns the server address in host:port form.
func (c Configuration) Addr() string {
	return net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10))
}

func parseConfiguration(args []string, out io.Writer) (Configuration, error) {
	config := Configuration{
		Host:     "127.0.0.1",
		Port:     1337,
		LogLevel: "info",
	}

	flags := flag.NewFlagSet(BinaryName, flag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() {
		fmt.Fprintf(out, "Join a text chat server over UDP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flags.PrintDefaults()
		fmt.Fprint(out, "\n")
	}

	flags.StringVar(&config.Host, "host", config.Host, "Server host")
	flags.UintVar(&config.Port, "port", config.Port, "Server port")
	flags.StringVar(&config.User, "user", config.User, "Username to join with, asked for when empty.")
	flags.StringVar(&config.LogDir, "log-dir", config.LogDir, "Directory of the daily log files, empty disables logging.")
	flags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn or error.")

	if err := flags.Parse(args); err != nil {
		return config, err
	}

	if config.Host == "" {
		return config, errors.New("host value should not be empty")
	}
	if config.Port == 0 || config.Port > 65535 {
		return config, errors.New("port value should be between 1 and 65535")
	}
	if config.User != "" && !chatproto.ValidUsername(config.User) {
		return config, errors.New("user value should be 3 to 15 letters, digits, '-' or '_'")
	}
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return config, err
	}

	return config, nil
}

func printError(out io.Writer, err error) {
	fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, err)
}
