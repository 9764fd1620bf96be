package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cklxx/codectx/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.store.GetStatistics()
		if err != nil {
			return err
		}
		gen, err := a.store.Generation()
		if err != nil {
			return err
		}

		fmt.Printf("Index at %s\n", a.cfg.DataDir)
		fmt.Printf("  Files:      %d\n", st.TotalFiles)
		fmt.Printf("  Chunks:     %d\n", st.TotalChunks)
		fmt.Printf("  Generation: %d\n", gen)

		if runID, _ := a.store.GetMeta(store.MetaLastRunID); runID != "" {
			runAt, _ := a.store.GetMeta(store.MetaLastRunAt)
			fmt.Printf("  Last run:   %s (%s)\n", runID, runAt)
		}

		if n, err := a.vec.Size(); err == nil {
			fmt.Printf("  Vectors:    %d\n", n)
		}
		if n, err := a.lex.DocCount(); err == nil {
			fmt.Printf("  Keywords:   %d docs\n", n)
		}

		printCounts("Languages", st.FilesByLanguage)
		printCounts("Chunk kinds", st.ChunksByType)
		return nil
	},
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-14s %d\n", k, counts[k])
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
