package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrLaunch        = errors.New("launch error")
	ErrTimeout       = errors.New("timeout")
	ErrExitCode      = errors.New("exit code error")
	ErrIO            = errors.New("io error")
	ErrSkipped       = errors.New("skipped")
)

// Report statuses produced by Classify.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusSkipped   = "skipped"
)

// Wrap tags err with marker, one of the sentinels above, so Classify can
// map it to a report status. The message reads "marker: stage: op: msg: err";
// empty parts are left out. A nil marker means ErrIO.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrIO
	}
	detail := joinNonEmpty(stage, operation, message)
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// Classify maps a stage error to the status recorded in run reports.
func Classify(err error) string {
	switch {
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, ErrSkipped):
		return StatusSkipped
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	default:
		return StatusFailed
	}
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ": ")
}
