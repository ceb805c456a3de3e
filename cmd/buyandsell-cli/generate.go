package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/buyandsell/internal/filewriter"
	"github.com/maruel/buyandsell/internal/offertsv"
	"github.com/spf13/cobra"
)

// maxGenerate bounds a single generate run.
const maxGenerate = 1000

func newGenerateCommand() *cobra.Command {
	var (
		seed          uint64
		highWaterMark int
		timeout       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate <count> <path> <source>",
		Short: "Write random offers to a TSV file",
		Long: `Generate writes count random offers to path, one per line.

The vocabulary comes from source: an http(s) URL serving the mock data as JSON,
or a local .json or .yaml file. count must be between 1 and 1000.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 || n > maxGenerate {
				return fmt.Errorf("count must be a number between 1 and %d, got %q", maxGenerate, args[0])
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano()) //nolint:gosec // G115: any value is a valid seed
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			data, err := loadMockData(ctx, args[2])
			if err != nil {
				return err
			}
			gen, err := offertsv.NewGenerator(data, seed, time.Now())
			if err != nil {
				return err
			}
			err = filewriter.WithFile(args[1], func(w *filewriter.Writer) error {
				for range n {
					if err := w.Write(offertsv.Format(gen.Next())); err != nil {
						return err
					}
				}
				return nil
			}, filewriter.WithHighWaterMark(highWaterMark))
			if err != nil {
				return fmt.Errorf("failed to write offers: %w", err)
			}
			slog.InfoContext(ctx, "Offers generated", "count", n, "path", args[1], "seed", seed)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default: current time)")
	cmd.Flags().IntVar(&highWaterMark, "high-water-mark", filewriter.DefaultHighWaterMark, "Writer buffer size in bytes")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time limit for fetching the mock data")
	return cmd
}

func loadMockData(ctx context.Context, source string) (*offertsv.MockData, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return offertsv.FetchMockData(ctx, &http.Client{}, source)
	}
	return offertsv.LoadMockData(source)
}
