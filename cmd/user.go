package cmd

import (
	"errors"
	"fmt"

	"github.com/TheManchineel/titilda-music/core/auth"
	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/repository"

	"github.com/spf13/cobra"
)

var (
	userName     string
	userPassword string
	userFullName string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userName == "" || userPassword == "" {
			return errors.New("--username and --password are required")
		}
		if userFullName == "" {
			userFullName = userName
		}
		ctx := cmd.Context()
		conn, err := db.ConnectDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		authority := auth.NewAuthority(repository.NewMySQLUserRepository(conn), cfg.AuthSecret, cfg.TokenTTL)
		if _, err := authority.Register(ctx, userName, userPassword, userFullName); err != nil {
			return err
		}
		fmt.Printf("User %s created.\n", userName)
		return nil
	},
}

var userRevokeCmd = &cobra.Command{
	Use:   "revoke-sessions",
	Short: "Invalidate every session token of an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userName == "" {
			return errors.New("--username is required")
		}
		ctx := cmd.Context()
		conn, err := db.ConnectDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := repository.NewMySQLUserRepository(conn)
		user, err := users.GetUserByUsername(ctx, userName)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s does not exist", userName)
		}
		if err := auth.NewAuthority(users, cfg.AuthSecret, cfg.TokenTTL).RevokeAllSessions(ctx, user); err != nil {
			return err
		}
		fmt.Printf("Sessions of %s revoked.\n", userName)
		return nil
	},
}

func init() {
	userCmd.PersistentFlags().StringVarP(&userName, "username", "u", "", "account username")
	userCreateCmd.Flags().StringVarP(&userPassword, "password", "p", "", "account password")
	userCreateCmd.Flags().StringVarP(&userFullName, "full-name", "n", "", "display name (defaults to the username)")

	userCmd.AddCommand(userCreateCmd, userRevokeCmd)
	rootCmd.AddCommand(userCmd)

	userCmd.Example = `  titilda-music user create -u alice -p secret -n "Alice Liddell"
  titilda-music user revoke-sessions -u alice`
}
