package main

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var listAll bool

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the questions the knowledge graph answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := loadGraph()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		questions := graph.InitialQuestions()
		if listAll {
			questions = graph.Questions()
		}

		if jsonOutput {
			categories := map[string][]string{}
			for _, name := range graph.Categories() {
				categories[name] = graph.Category(name)
			}
			data, err := sonic.ConfigStd.MarshalIndent(map[string]any{
				"questions":  questions,
				"categories": categories,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		for i, q := range questions {
			fmt.Fprintf(out, "%2d. %s\n", i+1, q)
		}
		if !listAll {
			for _, name := range graph.Categories() {
				fmt.Fprintf(out, "\n[%s]\n", name)
				for _, q := range graph.Category(name) {
					fmt.Fprintf(out, "  - %s\n", q)
				}
			}
		}
		return nil
	},
}

func init() {
	questionsCmd.Flags().BoolVar(&listAll, "all", false, "list every question in the graph")
}
