package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kstor/internal/client/api"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Create, search, unlock, update, or delete secrets",
}

var (
	metaApp      string
	metaDatabase string
	metaLogin    string
	metaServer   string
	metaURL      string
	groupIDsCSV  string
)

func metaFromFlags() api.MetaWire {
	return api.MetaWire{App: metaApp, Database: metaDatabase, Login: metaLogin, Server: metaServer, URL: metaURL}
}

func addMetaFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&metaApp, "app", "", "metadata: app")
	cmd.Flags().StringVar(&metaDatabase, "database", "", "metadata: database")
	cmd.Flags().StringVar(&metaLogin, "meta-login", "", "metadata: login")
	cmd.Flags().StringVar(&metaServer, "server", "", "metadata: server")
	cmd.Flags().StringVar(&metaURL, "url", "", "metadata: url")
}

func parseGroupIDs(csv string) ([]int64, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var secretCreateCmd = &cobra.Command{
	Use:   "create <plaintext>",
	Short: "Seal a new secret for one or more groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupIDs, err := parseGroupIDs(groupIDsCSV)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		id, err := s.CreateSecret([]byte(args[0]), groupIDs, metaFromFlags())
		if err != nil {
			return err
		}
		return printJSON(map[string]int64{"secret_id": id})
	},
}

var secretSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List secrets visible to the caller matching a metadata glob pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.SearchSecrets(metaFromFlags())
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var secretUnlockCmd = &cobra.Command{
	Use:   "unlock <secret_id>",
	Short: "Decrypt and print one secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.UnlockSecret(id)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"secret_id":    out.SecretID,
			"plaintext":    string(out.Plaintext),
			"meta":         out.Meta,
			"value_author": out.ValueAuthor,
			"meta_author":  out.MetaAuthor,
			"groups":       out.Groups,
		})
	},
}

var secretUpdateMetaCmd = &cobra.Command{
	Use:   "update-meta <secret_id>",
	Short: "Patch a secret's metadata, leaving its value untouched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		if err := s.UpdateSecretMeta(id, metaFromFlags()); err != nil {
			return err
		}
		return printJSON(map[string]int64{"secret_id": id})
	},
}

var secretUpdateValueCmd = &cobra.Command{
	Use:   "update-value <secret_id> <plaintext>",
	Short: "Re-seal a secret's value for every group it is currently shared with",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		if err := s.UpdateSecretValue(id, []byte(args[1])); err != nil {
			return err
		}
		return printJSON(map[string]int64{"secret_id": id})
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <secret_id>",
	Short: "Delete a secret and every sealed value row backing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		if err := s.DeleteSecret(id); err != nil {
			return err
		}
		return printJSON(map[string]int64{"secret_id": id})
	},
}

func init() {
	addMetaFlags(secretCreateCmd)
	secretCreateCmd.Flags().StringVar(&groupIDsCSV, "groups", "", "comma-separated group ids to share with")
	addMetaFlags(secretSearchCmd)
	addMetaFlags(secretUpdateMetaCmd)

	secretCmd.AddCommand(secretCreateCmd)
	secretCmd.AddCommand(secretSearchCmd)
	secretCmd.AddCommand(secretUnlockCmd)
	secretCmd.AddCommand(secretUpdateMetaCmd)
	secretCmd.AddCommand(secretUpdateValueCmd)
	secretCmd.AddCommand(secretDeleteCmd)
}
