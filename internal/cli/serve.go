package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/config"
	"github.com/qianshe/snowflake/internal/lease"
	"github.com/qianshe/snowflake/internal/metrics"
	"github.com/qianshe/snowflake/internal/nodeid"
	"github.com/qianshe/snowflake/internal/server"
	"github.com/qianshe/snowflake/internal/store"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ID service",
		Long: `Run the HTTP ID service.

Settings come from SNOWFLAKE_* environment variables; flags override them.
The node identity is taken from SNOWFLAKE_WORKER_ID/SNOWFLAKE_DATACENTER_ID
when both are set, leased from Redis when SNOWFLAKE_REDIS_ADDR is set, and
otherwise hashed from POD_NAME, HOSTNAME or the OS hostname.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr, _ := cmd.Flags().GetString("http"); addr != "" {
				cfg.HTTPAddr = addr
			}
			if path, _ := cmd.Flags().GetString("db"); path != "" {
				cfg.DBPath = path
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cfg.Logger("snowflake"))
		},
	}
	cmd.Flags().String("http", "", "HTTP listen address (overrides SNOWFLAKE_HTTP_ADDR)")
	cmd.Flags().String("db", "", "SQLite path for /v1/posts, \"-\" disables it (overrides SNOWFLAKE_DB_PATH)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var rdb redis.Cmdable
	if cfg.RedisAddr != "" && !cfg.HasNodeID() {
		client := newRedisClient(cfg)
		defer client.Close()
		rdb = client
	}

	node, leaser, err := resolveNode(ctx, cfg, rdb, nodeid.Resolver{}, logger)
	if err != nil {
		return err
	}
	logger.Info("node identity resolved",
		slog.Int64("datacenter", node.DatacenterID),
		slog.Int64("worker", node.WorkerID),
		slog.String("source", string(node.Source)))

	var (
		wg       sync.WaitGroup
		leaseErr error
	)
	if leaser != nil {
		defer func() {
			releaseCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if err := leaser.Release(releaseCtx); err != nil && !errors.Is(err, lease.ErrNotHeld) {
				logger.Warn("lease release failed", slog.Any("err", err))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := leaser.Run(ctx); errors.Is(err, lease.ErrLost) || errors.Is(err, lease.ErrNotHeld) {
				// Another process may now own the pair; stop issuing IDs.
				leaseErr = err
				cancel()
			}
		}()
	}

	gen, err := snowflake.NewWithConfig(cfg.GeneratorConfig(node.WorkerID, node.DatacenterID))
	if err != nil {
		return err
	}

	var posts *store.Store
	if cfg.DBPath != "-" {
		posts, err = store.Open(ctx, cfg.DBPath, gen)
		if err != nil {
			return err
		}
		defer posts.Close()
	}

	srv := server.New(gen, posts, metrics.NewRegistry(gen), logger)
	err = srv.ListenAndServe(ctx, cfg.HTTPAddr)
	cancel()
	wg.Wait()

	if leaseErr != nil {
		return fmt.Errorf("node lease: %w", leaseErr)
	}
	return err
}

// resolveNode picks the node identity. With a Redis client and no explicit
// pair the slot is leased, and the returned Leaser must be kept renewed and
// released by the caller.
func resolveNode(ctx context.Context, cfg *config.Config, rdb redis.Cmdable, resolver nodeid.Resolver, logger *slog.Logger) (nodeid.Node, *lease.Leaser, error) {
	if cfg.HasNodeID() || rdb == nil {
		node, err := resolver.Resolve(cfg.WorkerID, cfg.DatacenterID)
		return node, nil, err
	}

	// Start the scan at the hashed slot so a restarted pod tends to
	// reclaim the pair it held before.
	var preferred int64
	if hashed, err := resolver.Resolve(config.Unset, config.Unset); err == nil {
		preferred = hashed.Slot
	}

	leaser := lease.New(rdb, lease.Options{
		TTL:       cfg.LeaseTTL,
		Preferred: preferred,
		Logger:    logger,
	})
	node, err := leaser.Acquire(ctx)
	if err != nil {
		return nodeid.Node{}, nil, fmt.Errorf("lease node id: %w", err)
	}
	return node, leaser, nil
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
