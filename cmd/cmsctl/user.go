package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trailcms/api/internal/authpw"
	"trailcms/api/internal/config"
	"trailcms/api/internal/rbac"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage CMS accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("CMS_USER_PASSWORD")
		}
		role, _ := cmd.Flags().GetString("role")
		displayName, _ := cmd.Flags().GetString("display-name")
		mail, _ := cmd.Flags().GetString("email")

		db, dataStore, err := openStore(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := authpw.NewService(dataStore).CreateUser(cmd.Context(), authpw.CreateUserRequest{
			Username:    args[0],
			Password:    password,
			DisplayName: displayName,
			Email:       mail,
			Role:        role,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with role %s\n", user.Username, user.ID, user.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dataStore, err := openStore(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := dataStore.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tROLE\tSTATUS\tCREATED")
		for _, user := range users {
			status := "active"
			if !user.Active() {
				status = "deactivated"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", user.Username, user.Role, status, user.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var userRoleCmd = &cobra.Command{
	Use:   "role <username> <viewer|editor|admin>",
	Short: "Change the role of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rbac.Valid(args[1]) {
			return fmt.Errorf("unknown role %q", args[1])
		}
		db, dataStore, err := openStore(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := dataStore.GetUserByUsername(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("find user %s: %w", args[0], err)
		}
		if err := dataStore.UpdateUserRole(cmd.Context(), user.ID, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Username, args[1])
		return nil
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <username>",
	Short: "Deactivate an account and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dataStore, err := openStore(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := dataStore.GetUserByUsername(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("find user %s: %w", args[0], err)
		}
		if err := dataStore.DeactivateUser(cmd.Context(), user.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s\n", user.Username)
		return nil
	},
}

func init() {
	userAddCmd.Flags().String("password", "", "initial password (defaults to $CMS_USER_PASSWORD)")
	userAddCmd.Flags().String("role", string(rbac.RoleEditor), "viewer, editor or admin")
	userAddCmd.Flags().String("display-name", "", "name shown in the editor")
	userAddCmd.Flags().String("email", "", "contact address")

	userCmd.AddCommand(userAddCmd, userListCmd, userRoleCmd, userDeactivateCmd)
	rootCmd.AddCommand(userCmd)
}
