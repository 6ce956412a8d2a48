package cli

import "github.com/spf13/cobra"

var pingCmd = &cobra.Command{
	Use:   "ping [payload]",
	Short: "Round-trip a payload off the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := ""
		if len(args) == 1 {
			payload = args[0]
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		echoed, err := s.Ping(payload)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"payload": echoed})
	},
}
