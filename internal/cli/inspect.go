package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qianshe/snowflake"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "parse <id>",
		Aliases: []string{"p"},
		Short:   "Parse and inspect an ID",
		Example: `  snowflake parse 516034560
  snowflake parse yVea4      # base62
  snowflake parse 0x1ec21000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			p := snowflake.Parse(id)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snowflake ID: %s\n\n", id)
			fmt.Fprintf(out, "Components:\n")
			fmt.Fprintf(out, "  Timestamp:  %s (%d ms since epoch)\n",
				p.Time().UTC().Format(time.RFC3339Nano), p.TimestampMillis-snowflake.Epoch)
			fmt.Fprintf(out, "  Datacenter: %d\n", p.DatacenterID)
			fmt.Fprintf(out, "  Worker:     %d\n", p.WorkerID)
			fmt.Fprintf(out, "  Sequence:   %d\n\n", p.Sequence)
			fmt.Fprintf(out, "Encodings:\n")
			fmt.Fprintf(out, "  Decimal:    %s\n", id.String())
			fmt.Fprintf(out, "  Base62:     %s\n", id.Base62())
			fmt.Fprintf(out, "  Base58:     %s\n", id.Base58())
			fmt.Fprintf(out, "  Hex:        %s\n\n", id.Hex())
			fmt.Fprintf(out, "Age:          %v\n", id.Age().Round(time.Millisecond))
			fmt.Fprintf(out, "Valid:        %v\n", id.IsValid())
			fmt.Fprintf(out, "JS-safe:      %v\n", id.IsSafe())
			return nil
		},
	}
}

func newEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "encode <id> <format>",
		Aliases: []string{"enc", "e"},
		Short:   "Convert an ID between encodings",
		Long: `Convert an ID to another encoding.

Formats: decimal, base58 (b58), base62 (b62), hex (x), binary (bin).`,
		Example: `  snowflake encode 516034560 base62
  snowflake encode yVea4 decimal`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			format := args[1]
			if format == "dec" {
				format = "decimal"
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.Format(format))
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "validate <id>",
		Aliases: []string{"val", "v"},
		Short:   "Check that an ID decodes to a plausible layout",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := snowflake.Parse(id)
			if !id.IsValid() {
				fmt.Fprintf(out, "INVALID: %s\n", id)
				switch {
				case id <= 0:
					fmt.Fprintf(out, "  not a positive integer\n")
				case p.TimestampMillis <= snowflake.Epoch:
					fmt.Fprintf(out, "  timestamp is not after the epoch\n")
				default:
					fmt.Fprintf(out, "  timestamp %s is in the future\n", p.Time().UTC().Format(time.RFC3339))
				}
				return fmt.Errorf("invalid id %s", id)
			}

			fmt.Fprintf(out, "VALID: %s\n", id)
			fmt.Fprintf(out, "  Timestamp:  %s\n", p.Time().UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "  Datacenter: %d\n", p.DatacenterID)
			fmt.Fprintf(out, "  Worker:     %d\n", p.WorkerID)
			fmt.Fprintf(out, "  Sequence:   %d\n", p.Sequence)
			return nil
		},
	}
}

func newFallbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Emit unstructured millisecond*1e6+random IDs",
		Long: `Emit IDs in the fallback shape used when a structured ID would not fit in
53 bits or the clock moved backwards. They carry no node or sequence fields
and are unique only with high probability.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			gen, err := snowflake.New(0, 0)
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				fmt.Fprintln(cmd.OutOrStdout(), gen.FallbackID())
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 1, "Number of IDs to emit")
	return cmd
}
