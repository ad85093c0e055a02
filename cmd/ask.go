package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workforce-pulse/insights-cli/internal/pipeline"
)

var (
	askThread string
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer a single question against the survey data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.Pipeline.Run(cmd.Context(), pipeline.Request{
			Query:    strings.Join(args, " "),
			ThreadID: askThread,
		})
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ans)
		}

		if ans.StarterQuestion {
			fmt.Printf("Starter question %s: %d statistics from %d files\n",
				ans.Query, len(ans.Stats), len(ans.FileIDs))
			return nil
		}

		fmt.Println(ans.Text)
		for _, notice := range ans.IncomparableTopics {
			fmt.Printf("\nNote: %s\n", notice)
		}
		if ans.Validation != nil {
			fmt.Printf("\n[%s]\n", ans.Validation.Summary())
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askThread, "thread", "", "conversation thread ID (enables the thread cache)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the full answer as JSON")
	rootCmd.AddCommand(askCmd)
}
