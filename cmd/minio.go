package cmd

import (
	"fmt"

	"github.com/TheManchineel/titilda-music/storage"

	"github.com/spf13/cobra"
)

var minioList bool

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Check the MinIO bucket",
	Long:  `Connect to MinIO, create the bucket if it is missing and print its statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioBlobStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return printBlobStats(cmd, store, minioList)
	},
}

func init() {
	minioCmd.Flags().BoolVarP(&minioList, "list", "l", false, "list every object")
	rootCmd.AddCommand(minioCmd)
}
