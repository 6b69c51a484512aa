package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/TheManchineel/titilda-music/core/ingest"
	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/repository"
	"github.com/TheManchineel/titilda-music/storage"

	"github.com/spf13/cobra"
)

var (
	blobsList bool
	gcGrace   time.Duration
	gcDryRun  bool
)

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Inspect and clean the configured blob store",
}

var blobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print blob store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return printBlobStats(cmd, store, blobsList)
	},
}

var blobsGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete blobs that no song refers to",
	Long: `Delete blobs left behind by uploads that failed between writing the
blob and committing the song. Blobs younger than --grace are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := storage.Open(ctx, cfg)
		if err != nil {
			return err
		}
		conn, err := db.ConnectDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := ingest.NewService(conn, repository.NewMySQLSongRepository(conn), store, nil, cfg.ArtworkMaxDim)
		orphans, err := svc.CollectOrphans(ctx, gcGrace, gcDryRun)
		for _, key := range orphans {
			fmt.Println(key)
		}
		if err != nil {
			return err
		}
		verb := "Deleted"
		if gcDryRun {
			verb = "Found"
		}
		fmt.Printf("%s %d orphaned blobs.\n", verb, len(orphans))
		return nil
	},
}

func printBlobStats(cmd *cobra.Command, store storage.BlobStore, list bool) error {
	objects, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if list {
		for _, o := range objects {
			fmt.Printf("%-48s %10s  %s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format(time.RFC3339))
		}
	}

	stats := storage.Summarize(objects)
	fmt.Printf("Objects: %d\n", stats.TotalObjects)
	fmt.Printf("Total size: %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Printf("Last modified: %s\n", stats.LastModified.Format(time.RFC3339))
	}
	types := make([]string, 0, len(stats.BytesByType))
	for t := range stats.BytesByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-26s %s\n", t, storage.FormatSize(stats.BytesByType[t]))
	}
	return nil
}

func init() {
	blobsStatsCmd.Flags().BoolVarP(&blobsList, "list", "l", false, "list every blob")
	blobsGCCmd.Flags().DurationVar(&gcGrace, "grace", time.Hour, "keep blobs younger than this")
	blobsGCCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "only report orphaned blobs")

	blobsCmd.AddCommand(blobsStatsCmd, blobsGCCmd)
	rootCmd.AddCommand(blobsCmd)
}
