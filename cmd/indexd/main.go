package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexd",
		Short: "Keep an object index in sync with object store notifications",
		Long: `indexd receives object store change notifications over HTTP and
maintains one index record per object key. Settings are read from
OBJECT_INDEX_* environment variables; flags override them.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("backend", "", "index store backend: dynamodb, postgres, pebble or memory")
	flags.String("table-name", "", "DynamoDB table name")
	flags.String("region", "", "AWS region")
	flags.String("endpoint", "", "DynamoDB endpoint override")
	flags.String("postgres-url", "", "Postgres connection URL")
	flags.String("pebble-dir", "", "pebble database directory")
	flags.String("log-level", "", "log level")

	cmd.AddCommand(
		newServeCommand(),
		newGetCommand(),
	)

	return cmd
}
