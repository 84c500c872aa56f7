package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/app"
	"github.com/sh3r4rd/object_index/internal/config"
)

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <filename>",
		Short: "Print the index record for a key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			store, closeStore, err := app.OpenStore(cmd.Context(), *cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer closeStore()

			rec, ok, err := store.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no record for %q", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}
