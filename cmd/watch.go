package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cklxx/codectx/internal/watch"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a repository and reindex on change",
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

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Indexing %s...\n", a.cfg.Repo)
		stats, err := a.indexer.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d files (%d chunks) in %s\n",
			stats.Indexed, stats.Chunks, stats.Duration.Round(time.Millisecond))

		onChange := func(cctx context.Context) {
			stats, err := a.indexer.Run(cctx)
			if err != nil {
				a.log.Warn("reindex failed", zap.Error(err))
				return
			}
			if stats.Changed() {
				fmt.Printf("Reindexed: %d files, %d deleted (%s)\n",
					stats.Indexed, stats.Deleted, stats.Duration.Round(time.Millisecond))
			}
		}

		w := watch.New(a.cfg.Repo, a.cfg.DataDir, flagDebounce, onChange, a.log)
		if err := w.Start(ctx); err != nil {
			return err
		}

		fmt.Println("Watching for changes. Ctrl-C to stop.")
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before reindexing (default 500ms)")
	rootCmd.AddCommand(watchCmd)
}
