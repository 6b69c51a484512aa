package cmd

import (
	"fmt"

	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and seed genres",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := db.ConnectDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.InitSchema(ctx, conn); err != nil {
			return err
		}
		gormDB, err := db.ConnectGormDB(conn)
		if err != nil {
			return err
		}
		if err := repository.NewGormGenreRepository(gormDB).SeedGenres(ctx, model.DefaultGenres); err != nil {
			return err
		}
		fmt.Println("Schema is up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
