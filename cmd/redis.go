package cmd

import (
	"errors"
	"fmt"

	"github.com/TheManchineel/titilda-music/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Test the Redis connection",
	Long:  `Connect to Redis and round-trip a key to check that the genre cache can be used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedisHost == "" {
			return errors.New("REDIS_HOST is not set, the genre cache is disabled")
		}
		fmt.Printf("Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		ctx := cmd.Context()
		client, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := cache.TestRedis(ctx, client); err != nil {
			return err
		}
		fmt.Println("Redis is reachable and accepts writes.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
