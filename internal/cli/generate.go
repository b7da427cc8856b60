package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qianshe/snowflake"
)

type idInfo struct {
	ID         string    `json:"id"`
	Base62     string    `json:"base62"`
	Hex        string    `json:"hex"`
	Timestamp  time.Time `json:"timestamp"`
	Datacenter int64     `json:"datacenter"`
	Worker     int64     `json:"worker"`
	Sequence   int64     `json:"sequence"`
	Safe       bool      `json:"safe"`
}

type generateOutput struct {
	Count        int      `json:"count"`
	WorkerID     int64    `json:"worker_id"`
	DatacenterID int64    `json:"datacenter_id"`
	Duration     string   `json:"duration"`
	RatePerSec   float64  `json:"rate_per_sec"`
	IDs          []idInfo `json:"ids"`
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "g"},
		Short:   "Generate IDs",
		Example: `  snowflake generate --worker 7 --datacenter 2
  snowflake generate --count 1000 --format base62
  snowflake generate --json
  snowflake generate --safe --count 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			workerID, _ := cmd.Flags().GetInt64("worker")
			datacenterID, _ := cmd.Flags().GetInt64("datacenter")
			format, _ := cmd.Flags().GetString("format")
			jsonOutput, _ := cmd.Flags().GetBool("json")
			safe, _ := cmd.Flags().GetBool("safe")

			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			if err := checkFormat(format); err != nil {
				return err
			}

			gen, err := snowflake.New(workerID, datacenterID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if safe {
				for i := 0; i < count; i++ {
					sid, err := gen.NextSafeIDWithContext(cmd.Context())
					if err != nil {
						return err
					}
					if sid.Fallback {
						fmt.Fprintf(out, "%d\tfallback\n", sid.Value)
					} else {
						fmt.Fprintf(out, "%d\n", sid.Value)
					}
				}
				return nil
			}

			start := time.Now()
			ids, err := gen.GenerateBatch(cmd.Context(), count)
			if err != nil {
				return fmt.Errorf("generated %d of %d IDs: %w", len(ids), count, err)
			}
			elapsed := time.Since(start)

			if jsonOutput {
				return writeGenerateJSON(cmd, ids, elapsed, workerID, datacenterID)
			}
			for _, id := range ids {
				fmt.Fprintln(out, id.Format(format))
			}
			if count > 100 {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nGenerated %d IDs in %v (%.0f IDs/sec)\n",
					count, elapsed, float64(count)/elapsed.Seconds())
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 1, "Number of IDs to generate")
	cmd.Flags().Int64P("worker", "w", 0, "Worker ID (0-31)")
	cmd.Flags().Int64P("datacenter", "d", 0, "Datacenter ID (0-31)")
	cmd.Flags().StringP("format", "f", "decimal", "Output format: decimal, base58, base62, hex, binary")
	cmd.Flags().Bool("json", false, "Output as JSON with full details")
	cmd.Flags().Bool("safe", false, "Emit IDs that fit in 53 bits, falling back when needed")
	return cmd
}

func writeGenerateJSON(cmd *cobra.Command, ids []snowflake.ID, elapsed time.Duration, workerID, datacenterID int64) error {
	infos := make([]idInfo, len(ids))
	for i, id := range ids {
		p := snowflake.Parse(id)
		infos[i] = idInfo{
			ID:         id.String(),
			Base62:     id.Base62(),
			Hex:        id.Hex(),
			Timestamp:  p.Time(),
			Datacenter: p.DatacenterID,
			Worker:     p.WorkerID,
			Sequence:   p.Sequence,
			Safe:       id.IsSafe(),
		}
	}

	rate := 0.0
	if elapsed > 0 {
		rate = float64(len(ids)) / elapsed.Seconds()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(generateOutput{
		Count:        len(ids),
		WorkerID:     workerID,
		DatacenterID: datacenterID,
		Duration:     elapsed.String(),
		RatePerSec:   rate,
		IDs:          infos,
	})
}
