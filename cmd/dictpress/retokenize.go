package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/dictpress/internal/indexer"
)

func newRetokenizeCommand(opts *rootOptions) *cobra.Command {
	config := &indexer.Config{}
	cmd := &cobra.Command{
		Use:   "retokenize <lang>...",
		Short: "Recompute the search tokens of every entry of the given languages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr(), appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			for _, lang := range args {
				stats, err := a.indexer.Retokenize(cmd.Context(), lang, config)
				if err != nil {
					return fmt.Errorf("retokenize %s: %w", lang, err)
				}
				_, _ = fmt.Fprintf(out, "%s: %s scanned, %s updated, %s failed in %s\n",
					lang,
					humanize.Comma(int64(stats.EntriesScanned)),
					humanize.Comma(int64(stats.EntriesUpdated)),
					humanize.Comma(int64(stats.EntriesFailed)),
					stats.Duration.Round(time.Millisecond))

				// Include first few errors
				errs := stats.ErrorMessages
				if len(errs) > 5 {
					errs = errs[:5]
				}
				for _, msg := range errs {
					_, _ = fmt.Fprintf(out, "  %s\n", msg)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&config.Workers, "workers", 0, "concurrent workers (default: number of CPUs)")
	cmd.Flags().IntVar(&config.BatchSize, "batch-size", 500, "entries per transaction")
	return cmd
}
