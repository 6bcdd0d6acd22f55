package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aaxsplit/internal/config"
	"aaxsplit/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory and key checks shown by the status command.
// Tool checks live in CheckSystemDeps.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, 0),
	}
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckFreeSpace("Output directory space", cfg.Paths.OutputDir, 0))
	}
	return append(results, CheckActivationBytes(cfg.Audible.ActivationBytes))
}

// ForConversion checks the directories a conversion of an input of the given
// size writes to. The decoded intermediate lands in workDir and the chapter
// files in outputDir, each roughly the input size.
func ForConversion(workDir, outputDir string, inputSize int64) []Result {
	results := []Result{
		CheckDirectoryAccess("Work directory", workDir),
		CheckFreeSpace("Work directory space", workDir, inputSize),
	}
	if outputDir != "" {
		results = append(results, CheckFreeSpace("Output directory space", outputDir, inputSize))
	}
	return results
}

// Err folds failed results into a single configuration error, or nil.
func Err(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "checks", "", errors.New(strings.Join(failures, "; ")))
}
