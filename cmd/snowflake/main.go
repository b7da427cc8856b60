// Snowflake CLI - command-line tool and HTTP service for Snowflake IDs.
//
// Usage:
//
//	snowflake generate [flags]       Generate IDs
//	snowflake parse <id>             Parse and inspect an ID
//	snowflake encode <id> <format>   Convert an ID to a different encoding
//	snowflake validate <id>          Validate an ID
//	snowflake fallback               Emit fallback-shaped IDs
//	snowflake bench                  Run throughput benchmarks
//	snowflake serve                  Run the HTTP service
//	snowflake nodes                  Show node identity assignment
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/qianshe/snowflake/internal/cli"
)

const version = "1.1.0"

func main() {
	if err := cli.NewRoot(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
