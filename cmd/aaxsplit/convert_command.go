package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aaxsplit/internal/converter"
	"aaxsplit/internal/history"
	"aaxsplit/internal/transcode"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir        string
		activationBytes  string
		force            bool
		overwrite        bool
		trackTotal       bool
		verifyOutput     bool
		keepIntermediate bool
		quiet            bool
	)

	cmd := &cobra.Command{
		Use:   "convert [activation_bytes] <file>",
		Short: "Decrypt an AAX file and split it into chapter files",
		Long: `Decrypt an AAX file and split it into one tagged file per chapter.

Files are written to <directory>/<album artist>/<title>/NN - <chapter>.<ext>.
Activation bytes may be given as the first argument, with --activation-bytes,
in the [audible] config section, or via AAXSPLIT_ACTIVATION_BYTES.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("overwrite") {
				cfg.Output.Overwrite = overwrite
			}
			if flags.Changed("track-total") {
				cfg.Output.TrackTotal = trackTotal
			}
			if flags.Changed("verify") {
				cfg.Output.Verify = verifyOutput
			}
			if flags.Changed("keep-intermediate") {
				cfg.Output.KeepIntermediate = keepIntermediate
			}

			input := args[len(args)-1]
			if len(args) == 2 {
				activationBytes = args[0]
			}

			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var stats io.Writer
			if !quiet {
				stats = cmd.ErrOrStderr()
			}
			opts := []converter.Option{
				converter.WithTranscoder(transcode.New(
					transcode.WithBinary(cfg.FFmpegBinary()),
					transcode.WithOverwrite(cfg.Output.Overwrite),
					transcode.WithStats(stats),
				)),
			}
			if cfg.History.Enabled {
				store, err := history.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, converter.WithLedger(store))
			}

			conv := converter.New(cfg, logger, opts...)
			result, err := conv.Convert(cmd.Context(), converter.Request{
				Input:           input,
				ActivationBytes: activationBytes,
				OutputDir:       outputDir,
				Force:           force,
			})
			if err != nil {
				return err
			}
			printConvertSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "directory", "d", "", "Base output directory (default paths.output_dir)")
	cmd.Flags().StringVar(&activationBytes, "activation-bytes", "", "Activation bytes for decryption")
	cmd.Flags().BoolVar(&force, "force", false, "Convert even if history lists this input as done")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing chapter files")
	cmd.Flags().BoolVar(&trackTotal, "track-total", false, "Write track tags as n/total")
	cmd.Flags().BoolVar(&verifyOutput, "verify", false, "Read back chapter files after splitting")
	cmd.Flags().BoolVar(&keepIntermediate, "keep-intermediate", false, "Keep the full decoded file in the book directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide ffmpeg progress output")
	return cmd
}

func printConvertSummary(out io.Writer, result converter.Result) {
	if result.Skipped {
		prev := result.PreviousRun
		fmt.Fprintf(out, "Already converted on %s to %s (use --force to convert again)\n",
			prev.FinishedAt.Local().Format("2006-01-02 15:04"), prev.OutputDir)
		return
	}
	book := result.Plan.Book
	fmt.Fprintf(out, "Title:      %s\n", book.Title)
	fmt.Fprintf(out, "Artist:     %s\n", book.Artist)
	fmt.Fprintf(out, "Chapters:   %d\n", len(result.Plan.Tracks))
	fmt.Fprintf(out, "Output:     %s\n", result.Plan.OutputDir)
	fmt.Fprintf(out, "Size:       %s\n", humanize.Bytes(uint64(tracksSize(result))))
	if result.Intermediate != "" {
		fmt.Fprintf(out, "Decoded:    %s\n", result.Intermediate)
	}
	if result.Verification != nil {
		fmt.Fprintf(out, "Verified:   %d files\n", len(result.Verification.Results))
	}
	fmt.Fprintf(out, "Elapsed:    %s\n", result.Elapsed.Round(time.Second))
}

func tracksSize(result converter.Result) int64 {
	var total int64
	for _, track := range result.Plan.Tracks {
		if info, err := os.Stat(track.Path); err == nil {
			total += info.Size()
		}
	}
	return total
}
