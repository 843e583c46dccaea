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
	"time"

	"github.com/cyberinferno/udpchat/chatserver"
	"github.com/cyberinferno/udpchat/liveness"
	"github.com/cyberinferno/udpchat/logger"
	"github.com/cyberinferno/udpchat/presence"
)

// Configuration - server configuration
type Configuration struct {
	// IPAddress - bind the address
	IPAddress string
	// Port - bind the port
	Port uint
	// ClientMax - max number of joined users, 0 for no limit
	ClientMax int
	// HeartbeatTimeout - silence period before a user is evicted
	HeartbeatTimeout time.Duration
	// SweepInterval - period of the eviction sweep
	SweepInterval time.Duration
	// LogDir - directory of the daily log files, empty logs to stderr
	LogDir string
	// LogRetention - number of daily log files kept, 0 keeps all
	LogRetention int
	// LogLevel - minimum level written to the log
	LogLevel string
	// RedisAddr - address of the Redis server receiving the presence list, empty keeps it in memory
	RedisAddr string
	// RedisKey - key of the presence list
	RedisKey string
}

var (
	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version
	Version = "1.0.0"
)

// Addr returns the bind address in host:port form.
func (c Configuration) Addr() string {
	return net.JoinHostPort(c.IPAddress, strconv.FormatUint(uint64(c.Port), 10))
}

func defaultConfiguration() Configuration {
	return Configuration{
		Port:             1337,
		ClientMax:        chatserver.DefaultClientMax,
		HeartbeatTimeout: liveness.DefaultTimeout,
		SweepInterval:    liveness.DefaultInterval,
		LogDir:           "logs",
		LogRetention:     logger.DefaultRetention,
		LogLevel:         "info",
		RedisKey:         presence.DefaultKey,
	}
}

// parseConfiguration reads the command line. It returns flag.ErrHelp after
// printing usage for -help.
func parseConfiguration(args []string, out io.Writer) (Configuration, error) {
	config := defaultConfiguration()

	flags := flag.NewFlagSet(BinaryName, flag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() {
		fmt.Fprintf(out, "Launch text chat server over UDP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flags.PrintDefaults()
		fmt.Fprint(out, "\n")
	}

	flags.StringVar(&config.IPAddress, "ip", config.IPAddress, "Listen address")
	flags.UintVar(&config.Port, "port", config.Port, "Listen port")
	flags.IntVar(&config.ClientMax, "client-max", config.ClientMax, "Max number of joined users, 0 for no limit.")
	flags.DurationVar(&config.HeartbeatTimeout, "heartbeat-timeout", config.HeartbeatTimeout, "Silence period before a user is evicted.")
	flags.DurationVar(&config.SweepInterval, "sweep-interval", config.SweepInterval, "Period of the eviction sweep.")
	flags.StringVar(&config.LogDir, "log-dir", config.LogDir, "Directory of the daily log files, empty logs to stderr.")
	flags.IntVar(&config.LogRetention, "log-retention", config.LogRetention, "Number of daily log files kept, 0 keeps all.")
	flags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn or error.")
	flags.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "Redis address for the presence list, empty keeps it in memory.")
	flags.StringVar(&config.RedisKey, "redis-key", config.RedisKey, "Redis key of the presence list.")

	if err := flags.Parse(args); err != nil {
		return config, err
	}

	switch {
	case config.Port == 0 || config.Port > 65535:
		return config, errors.New("port value should be between 1 and 65535")
	case config.ClientMax < 0:
		return config, errors.New("client-max value should be greater or equal 0")
	case config.HeartbeatTimeout <= 0:
		return config, errors.New("heartbeat-timeout value should be positive")
	case config.SweepInterval <= 0:
		return config, errors.New("sweep-interval value should be positive")
	case config.LogRetention < 0:
		return config, errors.New("log-retention value should be greater or equal 0")
	}

	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return config, err
	}

	return config, nil
}

func printError(out io.Writer, err error) {
	fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, err)
}
