package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/workforce-pulse/insights-cli/internal/questionmap"
)

var (
	mapgenBase string
	mapgenOut  string
)

var mapgenCmd = &cobra.Command{
	Use:   "mapgen [questions-file]",
	Short: "Generate a question-ID mapping from base question texts",
	Long: `Matches each survey question against the base question bank using
fuzzy text scoring and writes the resulting ID mapping as JSON. The
questions file is a JSON object of question ID to question text; the base
bank maps base IDs to their known phrasings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := loadStringListMap(mapgenBase)
		if err != nil {
			return eris.Wrap(err, "load base question bank")
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read questions file")
		}
		var questions map[string]string
		if err := json.Unmarshal(raw, &questions); err != nil {
			return eris.Wrap(err, "parse questions file")
		}

		ids := make([]string, 0, len(questions))
		for id := range questions {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		mapping := make(map[string][]string, len(questions))
		unmatched := 0
		for _, id := range ids {
			matches := questionmap.FindMatchingQuestions(questions[id], base, id)
			mapping[id] = matches
			if len(matches) == 0 {
				unmatched++
				zap.L().Warn("no base question matched",
					zap.String("question_id", id),
				)
			}
		}

		out, err := json.MarshalIndent(mapping, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal mapping")
		}
		if mapgenOut == "" {
			fmt.Println(string(out))
		} else if err := os.WriteFile(mapgenOut, out, 0o644); err != nil {
			return eris.Wrap(err, "write mapping")
		}

		zap.L().Info("mapping generated",
			zap.Int("questions", len(questions)),
			zap.Int("unmatched", unmatched),
		)
		return nil
	},
}

func loadStringListMap(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string][]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func init() {
	mapgenCmd.Flags().StringVar(&mapgenBase, "base", "data/reference/base_questions.json", "base question bank JSON")
	mapgenCmd.Flags().StringVar(&mapgenOut, "out", "", "output path (default stdout)")
	rootCmd.AddCommand(mapgenCmd)
}
