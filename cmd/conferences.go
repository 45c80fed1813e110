package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/medahead/targeting-cli/internal/pipeline"
)

var conferencesIndustry string

var conferencesCmd = &cobra.Command{
	Use:   "conferences",
	Short: "Rank the conference catalog for an industry",
	Long:  "Scores the built-in conference catalog by relevance using the research API, or a keyword heuristic when no key is configured.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conferences := pipeline.RecommendConferences(ctx, initResearch(), conferencesIndustry)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tDATE\tLOCATION\tRELEVANCE")
		for _, c := range conferences {
			relevance := ""
			if c.RelevanceScore > 0 {
				relevance = fmt.Sprintf("%d", c.RelevanceScore)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Name, c.Date, c.Location, relevance)
		}
		return w.Flush()
	},
}

func init() {
	conferencesCmd.Flags().StringVar(&conferencesIndustry, "industry", "", "attendee industry to rank by")
	rootCmd.AddCommand(conferencesCmd)
}
