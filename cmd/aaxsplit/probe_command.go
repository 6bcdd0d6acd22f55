package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"aaxsplit/internal/audiobook"
	"aaxsplit/internal/converter"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show audiobook metadata and chapters without converting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			book, err := converter.New(cfg, logger).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			base := outputDir
			if base == "" {
				base = cfg.Paths.OutputDir
			}
			printBook(cmd.OutOrStdout(), audiobook.BuildPlan(book, base, cfg.Encoding.Extension))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "directory", "d", "", "Base output directory used for the planned paths")
	return cmd
}

func printBook(out io.Writer, plan audiobook.Plan) {
	book := plan.Book
	fmt.Fprintf(out, "Filename:     %s\n", book.Filename)
	fmt.Fprintf(out, "Title:        %s\n", book.Title)
	fmt.Fprintf(out, "Artist:       %s\n", book.Artist)
	fmt.Fprintf(out, "Album artist: %s\n", book.AlbumArtist)
	if book.Genre != "" {
		fmt.Fprintf(out, "Genre:        %s\n", book.Genre)
	}
	if book.Date != "" {
		fmt.Fprintf(out, "Date:         %s\n", book.Date)
	}
	if book.Copyright != "" {
		fmt.Fprintf(out, "Copyright:    %s\n", book.Copyright)
	}
	fmt.Fprintf(out, "Bit rate:     %s\n", formatBitRate(book.BitRate))
	fmt.Fprintf(out, "Duration:     %s\n", formatSeconds(book.Duration))
	fmt.Fprintf(out, "Output:       %s\n\n", plan.OutputDir)

	rows := make([][]string, 0, len(plan.Tracks))
	for _, track := range plan.Tracks {
		rows = append(rows, []string{
			fmt.Sprintf("%02d", track.Number),
			track.Title,
			formatSeconds(track.Start),
			formatSeconds(track.End),
			chapterLength(track.Start, track.End),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{numCol("#"), col("Chapter"), numCol("Start"), numCol("End"), numCol("Length")},
		rows,
		[]string{"", fmt.Sprintf("%d chapters", len(plan.Tracks)), "", "", formatSeconds(book.Duration)},
	))
}

func formatBitRate(raw string) string {
	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || bps <= 0 {
		return raw
	}
	return fmt.Sprintf("%d kb/s", (bps+500)/1000)
}

// formatSeconds renders ffprobe's decimal seconds as h:mm:ss.
func formatSeconds(raw string) string {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return raw
	}
	return formatDuration(time.Duration(seconds * float64(time.Second)))
}

func chapterLength(start, end string) string {
	s, err1 := strconv.ParseFloat(start, 64)
	e, err2 := strconv.ParseFloat(end, 64)
	if err1 != nil || err2 != nil || e < s {
		return "?"
	}
	return formatDuration(time.Duration((e - s) * float64(time.Second)))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
