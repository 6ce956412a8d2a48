package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/kstor/internal/flagx"
)

// yamlConfig is the on-disk shape of the YAML config file, keyed exactly as
// spec.md §6 names them. Duration fields are expressed in whole seconds.
type yamlConfig struct {
	Database           string `yaml:"database"`
	Socket             string `yaml:"socket"`
	NWorkers           int    `yaml:"nworkers"`
	SessionIdleTimeout int    `yaml:"session_idle_timeout"`
	SessionLifeTimeout int    `yaml:"session_life_timeout"`
	LogLevel           string `yaml:"log_level"`
}

// parseYAML overlays config with values read from the file named by the -c
// or -config flag, if any. Fields absent from the file keep their existing
// (default) value, since yaml.Unmarshal only overwrites the fields it finds.
func parseYAML(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := yamlConfig{
		Database:           config.DatabaseDSN,
		Socket:             config.SocketPath,
		NWorkers:           config.NWorkers,
		SessionIdleTimeout: int(config.SessionIdleTimeout.Seconds()),
		SessionLifeTimeout: int(config.SessionLifeTimeout.Seconds()),
		LogLevel:           config.LogLevel,
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		panic(err)
	}

	config.DatabaseDSN = c.Database
	config.SocketPath = c.Socket
	config.NWorkers = c.NWorkers
	config.SessionIdleTimeout = time.Duration(c.SessionIdleTimeout) * time.Second
	config.SessionLifeTimeout = time.Duration(c.SessionLifeTimeout) * time.Second
	config.LogLevel = c.LogLevel
}
