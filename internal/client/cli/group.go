package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage sharing groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a sharing group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.CreateGroup(args[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename <group_id> <name>",
	Short: "Rename a group",
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
		if err := s.RenameGroup(id, args[1]); err != nil {
			return err
		}
		return printJSON(map[string]int64{"group_id": id})
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <group_id>",
	Short: "Delete a group that has no remaining members",
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
		if err := s.DeleteGroup(id); err != nil {
			return err
		}
		return printJSON(map[string]int64{"group_id": id})
	},
}

var groupSearchCmd = &cobra.Command{
	Use:   "search [name-glob]",
	Short: "List groups whose name matches a glob pattern",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		out, err := s.SearchGroups(pattern)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var groupGetCmd = &cobra.Command{
	Use:   "get <group_id>",
	Short: "Show a group's membership",
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
		out, err := s.GetGroup(id)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var groupAddUserCmd = &cobra.Command{
	Use:   "add-user <group_id> <user_id>",
	Short: "Share the caller's group key with another user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		uid, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		if err := s.AddUserToGroup(gid, uid); err != nil {
			return err
		}
		return printJSON(map[string]int64{"group_id": gid, "user_id": uid})
	},
}

var groupRemoveUserCmd = &cobra.Command{
	Use:   "remove-user <group_id> <user_id>",
	Short: "Revoke a member's access to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		uid, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		if err := s.RemoveUserFromGroup(gid, uid); err != nil {
			return err
		}
		return printJSON(map[string]int64{"group_id": gid, "user_id": uid})
	},
}

func init() {
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupRenameCmd)
	groupCmd.AddCommand(groupDeleteCmd)
	groupCmd.AddCommand(groupSearchCmd)
	groupCmd.AddCommand(groupGetCmd)
	groupCmd.AddCommand(groupAddUserCmd)
	groupCmd.AddCommand(groupRemoveUserCmd)
}
