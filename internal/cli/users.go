package cli

import (
	"github.com/spf13/cobra"

	"observe/dashboard/internal/action"
)

var (
	userUsername string
	userPage     int
	userLimit    int
	userSort     []string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users and manage admin rights",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := action.ParseSortFlag(userSort)
		if err != nil {
			return err
		}
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		page, err := c.svc.ListUsers(cmd.Context(), c.sess, action.UserQuery{
			Page:     action.Page{Page: userPage, Limit: userLimit, Sort: sort},
			Username: userUsername,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := render(out, page, userHeaders, userRows(page.Results)); err != nil {
			return err
		}
		renderMeta(out, page.Meta)
		return nil
	},
}

var usersPromoteCmd = &cobra.Command{
	Use:   "promote <osm-id>",
	Short: "Grant admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd, args[0], true)
	},
}

var usersDemoteCmd = &cobra.Command{
	Use:   "demote <osm-id>",
	Short: "Revoke admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd, args[0], false)
	},
}

func setRole(cmd *cobra.Command, osmID string, isAdmin bool) error {
	c, err := openCommandSession(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.svc.SetUserRole(cmd.Context(), c.sess, osmID, isAdmin); err != nil {
		return err
	}
	if isAdmin {
		done(cmd.OutOrStdout(), "User "+osmID+" is now an admin")
	} else {
		done(cmd.OutOrStdout(), "User "+osmID+" is no longer an admin")
	}
	return nil
}

func init() {
	f := usersListCmd.Flags()
	f.StringVar(&userUsername, "username", "", "Filter by OSM display name")
	f.IntVar(&userPage, "page", 0, "Page number")
	f.IntVar(&userLimit, "limit", 0, "Results per page")
	f.StringSliceVar(&userSort, "sort", nil, "Sort as field:asc|desc, repeatable")

	usersCmd.AddCommand(usersListCmd, usersPromoteCmd, usersDemoteCmd)
	rootCmd.AddCommand(usersCmd)
}
