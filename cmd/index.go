package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagWorkers  int
	flagNoOracle bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository for search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			flagRepo = args[0]
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if flagWorkers > 0 {
			a.cfg.Indexing.Workers = flagWorkers
		}

		fmt.Printf("Indexing %s...\n", a.cfg.Repo)

		stats, err := a.indexer.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s\n", stats.Duration.Round(time.Millisecond))
		fmt.Printf("  Files:    %d total, %d indexed, %d unchanged, %d failed\n",
			stats.TotalFiles, stats.Indexed, stats.SkippedUnchanged, stats.Failed)
		if stats.Deleted > 0 {
			fmt.Printf("  Deleted:  %d\n", stats.Deleted)
		}
		fmt.Printf("  Chunks:   %d\n", stats.Chunks)
		fmt.Printf("  Excluded: %d", stats.Classification.Excluded)
		if len(stats.Classification.ExcludedByCategory) > 0 {
			fmt.Print(" (")
			first := true
			for cat, n := range stats.Classification.ExcludedByCategory {
				if !first {
					fmt.Print(", ")
				}
				fmt.Printf("%s: %d", cat, n)
				first = false
			}
			fmt.Print(")")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel workers (default from config)")
	indexCmd.Flags().BoolVar(&flagNoOracle, "no-oracle", false, "skip the LLM relevance review")
	rootCmd.AddCommand(indexCmd)
}
