package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/config"
	"github.com/qianshe/snowflake/internal/lease"
	"github.com/qianshe/snowflake/internal/nodeid"
)

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Show node identity assignment",
		Long: `Without --redis, print the pair this host would hash to.
With --redis (or SNOWFLAKE_REDIS_ADDR), list the slots currently leased.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr, _ := cmd.Flags().GetString("redis"); addr != "" {
				cfg.RedisAddr = addr
			}
			out := cmd.OutOrStdout()

			if cfg.RedisAddr == "" {
				node, err := nodeid.Resolver{}.Resolve(cfg.WorkerID, cfg.DatacenterID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, node)
				return nil
			}

			client := newRedisClient(cfg)
			defer client.Close()

			slots, err := lease.New(client, lease.Options{}).Active(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d slots leased\n", len(slots), snowflake.NodeCount)
			for _, slot := range slots {
				fmt.Fprintf(out, "  slot %4d  %s\n", slot, nodeid.FromSlot(slot, nodeid.SourceLease))
			}
			return nil
		},
	}
	cmd.Flags().String("redis", "", "Redis address (overrides SNOWFLAKE_REDIS_ADDR)")
	return cmd
}
