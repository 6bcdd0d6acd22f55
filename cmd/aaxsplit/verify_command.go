package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aaxsplit/internal/config"
	"aaxsplit/internal/services"
	"aaxsplit/internal/verify"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var ext string

	cmd := &cobra.Command{
		Use:   "verify <book-directory>",
		Short: "Check tags and durations of converted chapter files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ext == "" {
				ext = cfg.Encoding.Extension
			}
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			report, err := verify.New().CheckDirectory(cmd.Context(), dir, ext)
			if err != nil {
				return services.Wrap(services.ErrValidation, "verify", "directory", "", err)
			}
			printVerifyReport(cmd.OutOrStdout(), report)
			if !report.OK() {
				return services.Wrap(services.ErrValidation, "verify", "chapter files",
					fmt.Sprintf("%d of %d files failed", report.Failed(), len(report.Results)), nil)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "", "File extension to check (default encoding.extension)")
	return cmd
}

func printVerifyReport(out io.Writer, report verify.Report) {
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		status := "ok"
		if !res.OK() {
			status = strings.Join(res.Problems, "; ")
		}
		track := ""
		if res.Metadata.Track > 0 {
			track = strconv.Itoa(res.Metadata.Track)
			if res.Metadata.TrackTotal > 0 {
				track += "/" + strconv.Itoa(res.Metadata.TrackTotal)
			}
		}
		rows = append(rows, []string{
			filepath.Base(res.Path),
			track,
			res.Metadata.Title,
			formatDuration(res.Metadata.Duration),
			status,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{col("File"), numCol("Track"), col("Title"), numCol("Duration"), col("Status")},
		rows,
		nil,
	))
	fmt.Fprintf(out, "%d files checked, %d failed\n", len(report.Results), report.Failed())
}
