package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/kstor/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-s string   UNIX socket path
//	-w int      worker pool size
//	-i int      session idle timeout, seconds
//	-l int      session life timeout, seconds
//	-v string   log level
//
// parseFlags first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components (notably -c /
// -config, consumed separately by parseYAML).
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-w", "-i", "-l", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SocketPath, "s", config.SocketPath, "unix socket path")
	fs.IntVar(&config.NWorkers, "w", config.NWorkers, "worker pool size")

	idleTimeout := fs.Int("i", int(config.SessionIdleTimeout.Seconds()), "session_idle_timeout (in seconds)")
	lifeTimeout := fs.Int("l", int(config.SessionLifeTimeout.Seconds()), "session_life_timeout (in seconds)")

	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionIdleTimeout = time.Duration(*idleTimeout) * time.Second
	config.SessionLifeTimeout = time.Duration(*lifeTimeout) * time.Second
}
