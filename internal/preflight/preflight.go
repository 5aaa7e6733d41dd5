package preflight

import (
	"context"
	"fmt"
	"strings"

	"podscrub/internal/config"
	"podscrub/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The daemon logs failures at startup but keeps running; jobs that depend
// on a broken prerequisite fail individually with a clearer message.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Staging and data directories (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))

	// Library directory (when configured)
	if cfg.Paths.LibraryDir != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	}

	results = append(results, CheckExternalTools(cfg))
	results = append(results, CheckLLM(ctx, "Ad detection LLM", cfg.GetLLM()))

	return results
}

// CheckExternalTools folds the pipeline's tool requirements into one result.
func CheckExternalTools(cfg *config.Config) Result {
	statuses := CheckSystemDeps(cfg)
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return Result{
			Name:   "External tools",
			Detail: fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
		}
	}
	return Result{
		Name:   "External tools",
		Passed: true,
		Detail: fmt.Sprintf("%d tools resolved", len(statuses)),
	}
}
