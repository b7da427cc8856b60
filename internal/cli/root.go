// Package cli contains the cobra commands behind the snowflake binary.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qianshe/snowflake"
)

// NewRoot constructs the root command and registers every subcommand.
func NewRoot(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "snowflake",
		Short: "Distributed 64-bit unique ID generator",
		Long: `snowflake generates and inspects 64-bit IDs laid out as
41 bits of milliseconds since 2024-01-01, 5 bits of datacenter,
5 bits of worker and a 12-bit per-millisecond sequence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGenerateCommand(),
		newParseCommand(),
		newEncodeCommand(),
		newValidateCommand(),
		newFallbackCommand(),
		newBenchCommand(),
		newServeCommand(),
		newNodesCommand(),
	)
	return root
}

// parseID accepts decimal, base62, base58 and hex (0x-prefixed or bare).
func parseID(s string) (snowflake.ID, error) {
	id, err := snowflake.ParseAny(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse ID %q", s)
	}
	return id, nil
}

var formats = []string{"decimal", "base58", "base62", "hex", "binary"}

func checkFormat(format string) error {
	for _, f := range formats {
		if f == format {
			return nil
		}
	}
	switch format {
	case "dec", "b58", "b62", "x", "bin", "base2":
		return nil
	}
	return fmt.Errorf("unknown format %q (want one of %v)", format, formats)
}
