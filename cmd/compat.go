package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workforce-pulse/insights-cli/internal/compat"
)

var compatStrict bool

var compatCmd = &cobra.Command{
	Use:   "compat",
	Short: "Inspect the file compatibility registry",
}

var compatCheckCmd = &cobra.Command{
	Use:   "check [file-id...]",
	Short: "Check whether a set of files can be compared across years",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := compat.NewRegistry(cfg.Data.CompatibilityMap)

		policy := compat.PolicyPermissive
		if compatStrict {
			policy = compat.PolicyRestrictive
		}

		metas := registry.LookupFiles(args)
		for _, meta := range metas {
			info := registry.FileCompatibility(meta.FileID, policy)
			fmt.Printf("%s: topic=%s year=%d comparable=%v\n",
				meta.FileID, info.Topic, meta.Year, info.Comparable)
			if !info.Comparable {
				if reason := registry.FileIncomparabilityReason(meta.FileID); reason != "" {
					fmt.Printf("  %s\n", reason)
				}
			}
		}

		pairs := compat.ComparablePairs(metas)
		fmt.Printf("\ncomparable: %d  incomparable: %d\n", len(pairs.Valid), len(pairs.Invalid))
		if pairs.Message != "" {
			fmt.Printf("note: %s\n", pairs.Message)
		}
		return nil
	},
}

var compatTopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics by cross-year comparability",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := compat.NewRegistry(cfg.Data.CompatibilityMap)

		fmt.Println("comparable:")
		for _, t := range registry.CompatibleTopics() {
			fmt.Printf("  %s\n", t)
		}
		fmt.Println("non-comparable:")
		for _, t := range registry.NonComparableTopics() {
			msg := registry.IncomparableTopicMessage(t)
			fmt.Printf("  %s: %s\n", t, msg)
		}
		return nil
	},
}

var compatRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force-reload the compatibility mapping from disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := compat.NewRegistry(cfg.Data.CompatibilityMap)
		m := registry.Refresh()
		fmt.Printf("loaded %d file entries, %d topics, %d global files (version %s)\n",
			len(m.Files), len(m.Topics), len(m.GlobalFiles), m.Version)
		return nil
	},
}

func init() {
	compatCheckCmd.Flags().BoolVar(&compatStrict, "strict", false, "treat unknown files and topics as non-comparable")
	compatCmd.AddCommand(compatCheckCmd)
	compatCmd.AddCommand(compatTopicsCmd)
	compatCmd.AddCommand(compatRefreshCmd)
	rootCmd.AddCommand(compatCmd)
}
