package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qianshe/snowflake"
)

func newBenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bench",
		Aliases: []string{"benchmark", "b"},
		Short:   "Measure generation and encoding throughput",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			duration, _ := cmd.Flags().GetDuration("duration")
			batchSize, _ := cmd.Flags().GetInt("batch")
			if duration <= 0 || batchSize < 1 {
				return fmt.Errorf("--duration and --batch must be positive")
			}

			gen, err := snowflake.New(0, 0)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			fmt.Fprintf(out, "Running benchmarks (duration: %v)\n\n", duration)

			fmt.Fprintf(out, "1. Single ID generation:\n")
			count := 0
			start := time.Now()
			for deadline := start.Add(duration); time.Now().Before(deadline); count++ {
				if _, err := gen.NextIDWithContext(ctx); err != nil {
					return err
				}
			}
			report(cmd, count, time.Since(start))

			fmt.Fprintf(out, "2. Batch generation (batch size: %d):\n", batchSize)
			count = 0
			start = time.Now()
			for deadline := start.Add(duration); time.Now().Before(deadline); {
				ids, err := gen.GenerateBatch(ctx, batchSize)
				count += len(ids)
				if err != nil {
					return err
				}
			}
			report(cmd, count, time.Since(start))

			fmt.Fprintf(out, "3. Encoding (1000 operations each):\n")
			id, err := gen.NextID()
			if err != nil {
				return err
			}
			for _, f := range formats {
				start := time.Now()
				for i := 0; i < 1000; i++ {
					_ = id.Format(f)
				}
				fmt.Fprintf(out, "   %-8s %6.0f ns/op\n", f+":", float64(time.Since(start).Nanoseconds())/1000)
			}

			m := gen.GetMetrics()
			fmt.Fprintf(out, "\nSequence overflows: %d, waited %v\n",
				m.SequenceOverflow, time.Duration(m.WaitTimeUs)*time.Microsecond)
			return nil
		},
	}
	cmd.Flags().Duration("duration", 3*time.Second, "Duration of each generation run")
	cmd.Flags().Int("batch", 100, "Batch size for the batch run")
	return cmd
}

func report(cmd *cobra.Command, count int, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "   Generated:  %d IDs\n", count)
	fmt.Fprintf(out, "   Duration:   %v\n", elapsed)
	if count > 0 {
		fmt.Fprintf(out, "   Rate:       %.0f IDs/sec (%.0f ns/op)\n\n",
			float64(count)/elapsed.Seconds(), float64(elapsed.Nanoseconds())/float64(count))
	}
}
