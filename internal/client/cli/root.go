// Package cli implements the reference command-line client for a KStor
// server: one cobra subcommand per wire request type, each opening a fresh
// connection to the configured UNIX socket (spec §4.10).
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kstor/internal/client/api"
)

var (
	socketPath string
	login      string
	password   string
	timeout    time.Duration
)

// RootCmd is the entry point cmd/client binds to.
var RootCmd = &cobra.Command{
	Use:   "kstorctl",
	Short: "Command-line client for a KStor secret-sharing server",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/var/run/kstor/kstor.sock", "path to the server's UNIX socket")
	RootCmd.PersistentFlags().StringVar(&login, "login", "", "login to authenticate as")
	RootCmd.PersistentFlags().StringVar(&password, "password", "", "password (prompted if omitted)")
	RootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")

	RootCmd.AddCommand(pingCmd)
	RootCmd.AddCommand(userCmd)
	RootCmd.AddCommand(groupCmd)
	RootCmd.AddCommand(secretCmd)
}

// Execute runs the root command; cmd/client/main.go calls this directly.
func Execute() error {
	return RootCmd.Execute()
}

// newSession builds an api.Session from the persistent flags, prompting for
// a password on the terminal if one was not supplied (spec §4.10's
// masked-input requirement, grounded on the same term.ReadPassword idiom
// the server's teacher used client-side).
func newSession() (*api.Session, error) {
	pw := password
	if pw == "" && login != "" {
		var err error
		pw, err = promptPassword(os.Stderr, fmt.Sprintf("password for %s: ", login))
		if err != nil {
			return nil, err
		}
	}
	s := api.New(socketPath, timeout)
	s.Credentials(login, pw)
	return s, nil
}

// printJSON writes v to stdout as indented JSON, the uniform output format
// for every subcommand.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
