// Package deps checks that the external tools a run drives are installed.
package deps

import (
	"strings"

	"isoconvert/internal/config"
)

// Requirement defines an external tool isoconvert relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a tool.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools cfg needs. udisksctl is only required when
// images are mounted before the preload.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "Player",
			Command:     cfg.Tools.PlayerBinary,
			Description: "Preloads disc images",
		},
		{
			Name:        "HandBrakeCLI",
			Command:     cfg.Tools.EncoderBinary,
			Description: "Scans and encodes titles",
		},
	}
	reqs = append(reqs, Requirement{
		Name:        "udisksctl",
		Command:     cfg.Tools.UdisksctlBinary,
		Description: "Loop-mounts images (pipeline.mount_images)",
		Optional:    !cfg.Pipeline.MountImages,
	})
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := config.ResolveBinary(cmd)
		if err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		status.Detail = path
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required tools that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
