package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"isoconvert/internal/config"
	"isoconvert/internal/deps"
)

// Result reports the outcome of a single preflight check. Advisory results
// never block a run.
type Result struct {
	Name     string
	Passed   bool
	Advisory bool
	Detail   string
}

// RunAll executes all applicable preflight checks for cfg and the worklist
// items that will be converted.
func RunAll(ctx context.Context, cfg *config.Config, items []string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Advisory: status.Optional,
			Detail:   status.Detail,
		})
	}

	if err := cfg.ValidateWorklist(); err != nil {
		results = append(results, Result{Name: "Worklist", Detail: err.Error()})
	} else {
		results = append(results, Result{Name: "Worklist", Passed: true, Detail: cfg.Paths.WorklistFile})
	}

	results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))

	for _, dir := range OutputDirs(cfg, items) {
		results = append(results, CheckCreatableDirectory("Output "+filepath.Base(dir), dir))
		if cfg.Pipeline.MinFreeGiB > 0 {
			results = append(results, CheckFreeSpace(ctx, "Free space "+filepath.Base(dir), dir, uint64(cfg.Pipeline.MinFreeGiB)))
		}
	}
	return results
}

// Failed returns the blocking results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			failed = append(failed, r)
		}
	}
	return failed
}

// OutputDirs lists the distinct output directories items will write to.
func OutputDirs(cfg *config.Config, items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var dirs []string
	for _, item := range items {
		dir := cfg.OutputDir(item)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// existingAncestor walks up from path to the first directory that exists.
func existingAncestor(path string) (string, error) {
	current := filepath.Clean(path)
	for {
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", current)
			}
			return current, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		current = parent
	}
}
