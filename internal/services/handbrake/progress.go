package handbrake

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress is one parsed "Encoding: task ..." status line.
type Progress struct {
	Task    int
	Tasks   int
	Percent float64
	FPS     float64
	ETA     string
}

var progressLine = regexp.MustCompile(`Encoding: task (\d+) of (\d+), ([\d.]+) %(?: \(([\d.]+) fps, avg [\d.]+ fps, ETA ([0-9hms]+)\))?`)

// ParseProgress extracts encode progress from a HandBrakeCLI status line.
func ParseProgress(line string) (Progress, bool) {
	m := progressLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Progress{}, false
	}
	task, err := strconv.Atoi(m[1])
	if err != nil {
		return Progress{}, false
	}
	tasks, err := strconv.Atoi(m[2])
	if err != nil {
		return Progress{}, false
	}
	percent, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Progress{}, false
	}
	p := Progress{Task: task, Tasks: tasks, Percent: percent, ETA: m[5]}
	if m[4] != "" {
		if fps, err := strconv.ParseFloat(m[4], 64); err == nil {
			p.FPS = fps
		}
	}
	return p, true
}
