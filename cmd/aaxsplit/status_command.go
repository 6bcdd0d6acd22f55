package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aaxsplit/internal/preflight"
	"aaxsplit/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check tools, directories, and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config file", statusInfo, configPath, colorize),
				renderStatusLine("Output directory", statusInfo, cfg.Paths.OutputDir, colorize),
				renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize),
				renderStatusLine("Log file", statusInfo, cfg.LogFilePath(), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Environment", colorize)...)
			lines = append(lines, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize)...)

			dirs, err := staging.ListDirectories(cfg.Paths.WorkDir)
			if err != nil {
				lines = append(lines, renderStatusLine("Leftover runs", statusWarn, err.Error(), colorize))
			} else if len(dirs) > 0 {
				var total int64
				for _, d := range dirs {
					total += d.Size
				}
				lines = append(lines, renderStatusLine("Leftover runs", statusWarn,
					fmt.Sprintf("%d (%s)", len(dirs), humanize.IBytes(uint64(total))), colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}
