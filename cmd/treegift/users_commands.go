package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"treegift/internal/wizard"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Look up donors, sponsors, and groups",
	}
	cmd.AddCommand(newUsersSearchCommand(ctx))
	return cmd
}

func newUsersSearchCommand(ctx *commandContext) *cobra.Command {
	var groups bool
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search users by name or email (or groups with --groups)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			query := strings.TrimSpace(args[0])
			if len([]rune(query)) < cfg.Lookup.MinQueryLength {
				return fmt.Errorf("query must be at least %d characters", cfg.Lookup.MinQueryLength)
			}
			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if groups {
				found, err := wizard.SearchGroups(client, cfg.Lookup.PageSize)(cmd.Context(), query)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, found)
				}
				rows := make([][]string, 0, len(found))
				for _, g := range found {
					rows = append(rows, []string{strconv.FormatInt(g.ID, 10), g.Name, g.Type, yesNo(g.LogoURL != "")})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Type", "Logo"}, rows, []columnAlignment{alignRight}))
				return nil
			}

			found, err := wizard.SearchUsers(client, cfg.Lookup.PageSize)(cmd.Context(), query)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, found)
			}
			rows := make([][]string, 0, len(found))
			for _, u := range found {
				rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Name, u.Email, u.Phone})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Email", "Phone"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&groups, "groups", false, "Search groups instead of users")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
