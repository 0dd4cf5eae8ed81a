package disc

import (
	"fmt"
	"strings"
)

// Title is one playable title reported by the scanner. Duration is kept
// verbatim as "HH:MM:SS" and is empty when the scanner never reported it.
type Title struct {
	Ordinal  int    `json:"ordinal"`
	Duration string `json:"duration,omitempty"`
}

func (t Title) String() string {
	if t.Duration == "" {
		return fmt.Sprintf("title %d", t.Ordinal)
	}
	return fmt.Sprintf("title %d (%s)", t.Ordinal, t.Duration)
}

// Ordinals lists title ordinals in scan order.
func Ordinals(titles []Title) []int {
	out := make([]int, 0, len(titles))
	for _, t := range titles {
		out = append(out, t.Ordinal)
	}
	return out
}

// Summary renders titles as "1 (01:52:30), 2" for single-line logging.
func Summary(titles []Title) string {
	parts := make([]string, 0, len(titles))
	for _, t := range titles {
		if t.Duration == "" {
			parts = append(parts, fmt.Sprintf("%d", t.Ordinal))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d (%s)", t.Ordinal, t.Duration))
	}
	return strings.Join(parts, ", ")
}
