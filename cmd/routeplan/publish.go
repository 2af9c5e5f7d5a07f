package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dpup/saferoute/server/internal/cameras"
)

func newPublishCmd(root *rootOptions) *cobra.Command {
	var redisURL, key string

	cmd := &cobra.Command{
		Use:   "publish RESULTS_FILE",
		Short: "Publish a classification results file to Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if redisURL == "" {
				redisURL = cfg.Cameras.RedisURL
			}
			if key == "" {
				key = cfg.Cameras.RedisKey
			}
			if redisURL == "" {
				return fmt.Errorf("--redis-url or cameras.redis_url is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			source, err := cameras.NewRedisSource(redisURL, key)
			if err != nil {
				return err
			}
			defer source.Close()

			if err := source.Publish(cmd.Context(), data, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s\n", args[0], source.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "redis:// URL (defaults to cameras.redis_url)")
	cmd.Flags().StringVar(&key, "key", "", "Redis key (defaults to cameras.redis_key)")
	return cmd
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "import RESULTS_FILE",
		Short: "Upsert a classification results file into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := root.load()
			if err != nil {
				return err
			}
			if databaseURL == "" {
				databaseURL = cfg.Cameras.DatabaseURL
			}
			if databaseURL == "" {
				return fmt.Errorf("--database-url or cameras.database_url is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			results, err := cameras.ParseResults(data)
			if err != nil {
				return err
			}

			pool, err := pgxpool.New(ctx, databaseURL)
			if err != nil {
				return fmt.Errorf("postgres: failed to connect: %w", err)
			}
			defer pool.Close()

			source := cameras.NewPostgresSource(pool)
			if err := source.EnsureSchema(ctx); err != nil {
				return err
			}
			n, err := source.Import(ctx, results)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cameras\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to cameras.database_url)")
	return cmd
}
