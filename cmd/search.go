package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed code with hybrid lexical and semantic retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.retriever.Search(cmd.Context(), query, flagK)
		if err != nil {
			return err
		}

		fmt.Printf("%d results (%s)\n", len(resp.Hits), resp.Method)
		for i, hit := range resp.Hits {
			c := hit.Chunk
			label := c.Kind
			if c.Name != "" {
				label += " " + c.Name
			}
			fmt.Printf("%2d. %s:%d-%d  %s  (score %.3f)\n",
				i+1, c.FilePath, c.StartLine, c.EndLine, label, hit.Score)
			if c.Doc != "" {
				doc := c.Doc
				if idx := strings.IndexByte(doc, '\n'); idx >= 0 {
					doc = doc[:idx]
				}
				fmt.Printf("    %s\n", doc)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagK, "limit", "k", 10, "maximum results")
	rootCmd.AddCommand(searchCmd)
}
