package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workforce-pulse/insights-cli/internal/threadcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the thread scope cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [thread-id]",
	Short: "Remove a thread's cached scope and metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := openKV(cmd.Context())
		if err != nil {
			return err
		}
		defer kv.Close()

		mgr := threadcache.NewManager(kv)
		if err := mgr.ClearThreadCache(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("cleared thread %s\n", args[0])
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [thread-id]",
	Short: "Print a thread's cached scope and metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := openKV(cmd.Context())
		if err != nil {
			return err
		}
		defer kv.Close()

		mgr := threadcache.NewManager(kv)
		out := map[string]any{
			"threadId": args[0],
			"scope":    mgr.CachedScope(cmd.Context(), args[0]),
			"meta":     mgr.Meta(cmd.Context(), args[0]),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}
