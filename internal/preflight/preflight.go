package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"vidnote/internal/config"
	"vidnote/internal/deps"
	"vidnote/internal/summarize"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Watch.Enabled {
		results = append(results, CheckDirectoryAccess("Watch directory", cfg.Watch.Dir))
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	results = append(results, CheckSummarizer(ctx, cfg))
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable and
// writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSummarizer verifies that the summarizer credentials are present.
// Connectivity is only probed on demand; a missing key is the common failure.
func CheckSummarizer(ctx context.Context, cfg *config.Config) Result {
	const name = "Summarizer"
	if strings.TrimSpace(cfg.Summarizer.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	svc := summarize.NewService(cfg)
	health := svc.HealthCheck(ctx)
	if !health.Ready {
		return Result{Name: name, Detail: health.Detail}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Summarizer.Kind + " configured"}
}
